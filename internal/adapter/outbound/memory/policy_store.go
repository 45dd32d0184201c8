// Package memory implements a reloadable, in-memory resolver.Provider: a
// table of Policy/PolicySet Decidables that can be atomically swapped for a
// fresh one (e.g. after a policy author edits a policyfile on disk),
// without interrupting in-flight evaluations against the previous table.
package memory

import (
	"errors"
	"sync"

	"github.com/lattice-abac/pdp/internal/domain/policy"
	"github.com/lattice-abac/pdp/internal/domain/resolver"
)

// ErrPolicyNotFound is returned by Get for an unknown id.
var ErrPolicyNotFound = errors.New("policy not found")

// Store is a resolver.Provider backed by an in-memory, id-indexed table of
// Decidables. Reload atomically replaces the whole table under a write
// lock; concurrent Resolve calls either see the old table in full or the
// new one in full, never a partial mix.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]policy.Decidable
	onReload func()
}

// NewStore builds an empty Store. Call Reload to populate it.
func NewStore() *Store {
	return &Store{byID: make(map[string]policy.Decidable)}
}

// WithOnReload registers a callback fired after every successful Reload,
// e.g. to invalidate a decision cache whose entries were fingerprinted
// against the previous policy set.
func (s *Store) WithOnReload(fn func()) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = fn
	return s
}

// Reload replaces the entire table. A duplicate id among decidables is
// rejected and the previous table is left untouched.
func (s *Store) Reload(decidables []policy.Decidable) error {
	byID := make(map[string]policy.Decidable, len(decidables))
	for _, d := range decidables {
		if _, exists := byID[d.GetID()]; exists {
			return errors.New("memory: duplicate policy id " + d.GetID())
		}
		byID[d.GetID()] = d
	}

	s.mu.Lock()
	s.byID = byID
	onReload := s.onReload
	s.mu.Unlock()

	if onReload != nil {
		onReload()
	}
	return nil
}

// Get returns the Decidable registered under id.
func (s *Store) Get(id string) (policy.Decidable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return d, nil
}

// Resolve implements resolver.Provider.
func (s *Store) Resolve(ref resolver.Ref) (policy.Decidable, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[ref.ID]
	return d, ok, nil
}

var _ resolver.Provider = (*Store)(nil)

// Package cache defines the decision cache port (spec.md §4.L): a
// fingerprint-keyed store the PDP engine consults before evaluating an
// IndividualDecisionRequest and populates afterward. Concrete backends
// (in-memory, sqlite-backed) live under internal/adapter/outbound.
package cache

import (
	"context"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/lattice-abac/pdp/internal/domain/request"
	"github.com/lattice-abac/pdp/internal/domain/response"
)

// Key fingerprints one IndividualDecisionRequest. Two requests that carry
// the same categories/attributes (irrespective of slice order) fingerprint
// identically.
type Key uint64

// Cache is the decision cache contract. GetAll MUST return a map with
// exactly one entry per input key (a missing/nil value signals a cache
// miss, never an absent map key) so callers can range over the input slice
// and always find an entry. PutAll stores newly computed results. Close
// releases any held resources; the engine's own close() cascades into it
// (spec.md §5).
type Cache interface {
	GetAll(ctx context.Context, keys []Key) (map[Key]*response.Result, error)
	PutAll(ctx context.Context, entries map[Key]response.Result) error
	Close() error
}

// Fingerprint computes a stable Key for ind by hashing its categories and
// attributes in a canonical (sorted) order, so map/slice iteration order
// never affects the result.
func Fingerprint(ind request.IndividualDecisionRequest) Key {
	h := xxhash.New()

	categoryNames := make([]string, 0, len(ind.Categories))
	for name := range ind.Categories {
		categoryNames = append(categoryNames, name)
	}
	sort.Strings(categoryNames)

	for _, name := range categoryNames {
		cat := ind.Categories[name]
		_, _ = h.WriteString(name)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(cat.ID)
		_, _ = h.WriteString("\x00")

		attrs := make([]string, len(cat.Attrs))
		for i, a := range cat.Attrs {
			values := make([]string, len(a.Values))
			for j, v := range a.Values {
				values[j] = string(v.Type()) + "|" + v.CanonicalForm()
			}
			sort.Strings(values)
			key := a.FQN.Category + "|" + a.FQN.ID + "|" + a.FQN.Issuer
			attrs[i] = key + "=" + joinWithSep(values, ",")
		}
		sort.Strings(attrs)
		for _, a := range attrs {
			_, _ = h.WriteString(a)
			_, _ = h.WriteString("\x1f")
		}
		_, _ = h.WriteString("\x02")
	}
	return Key(h.Sum64())
}

func joinWithSep(values []string, sep string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += sep
		}
		out += v
	}
	return out
}

// Package resolver implements the root policy resolver and reference
// cache: finding the top-level policy tree and resolving
// PolicyIdReference/PolicySetIdReference nodes with cycle and depth
// limits (spec.md §4.H).
package resolver

import (
	"fmt"

	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/policy"
	"github.com/lattice-abac/pdp/internal/domain/status"
)

// Ref identifies a referenced Policy or PolicySet by id and an optional
// version-match expression (XACML version-match syntax, e.g. "1.*").
type Ref struct {
	ID           string
	VersionMatch string
}

// Provider resolves a Ref to a concrete Decidable. A static provider
// resolves every reference once at load time; a dynamic provider may
// re-resolve per request (e.g. against a live policy repository) — both
// shapes satisfy this same interface (spec.md §4.H).
type Provider interface {
	Resolve(ref Ref) (policy.Decidable, bool, error)
}

// StaticProvider resolves references from a fixed, load-time-built table.
type StaticProvider struct {
	byID map[string]policy.Decidable
}

// NewStaticProvider indexes decidables by id. A duplicate id is a load-time
// authoring error (spec.md §9: "load-time fatal").
func NewStaticProvider(decidables []policy.Decidable) (*StaticProvider, error) {
	byID := make(map[string]policy.Decidable, len(decidables))
	for _, d := range decidables {
		if _, exists := byID[d.GetID()]; exists {
			return nil, fmt.Errorf("resolver: duplicate policy id %q", d.GetID())
		}
		byID[d.GetID()] = d
	}
	return &StaticProvider{byID: byID}, nil
}

func (p *StaticProvider) Resolve(ref Ref) (policy.Decidable, bool, error) {
	d, ok := p.byID[ref.ID]
	return d, ok, nil
}

// Resolver tracks the maximum policy-reference depth and cycle detection
// across one evaluation path, delegating actual id lookup to a Provider.
type Resolver struct {
	provider Provider
	maxDepth int
}

// New builds a Resolver bounded by maxDepth (spec.md §6's
// maxPolicyReferenceDepth, default 10).
func New(provider Provider, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Resolver{provider: provider, maxDepth: maxDepth}
}

// NewDeferred builds a Resolver with no Provider bound yet. Loaders that
// must hand out *Reference nodes (and thus a *Resolver pointer) before the
// full id registry exists — e.g. a single-document loader resolving
// forward references across policies it hasn't parsed yet — construct one
// of these first and call Bind once the registry is ready. Resolve/Root
// called before Bind panic, the same as calling them on any other
// Resolver with a nil Provider.
func NewDeferred(maxDepth int) *Resolver {
	return New(nil, maxDepth)
}

// Bind attaches the Provider a deferred Resolver delegates to.
func (r *Resolver) Bind(provider Provider) { r.provider = provider }

// Reference is the Decidable implementing PolicyIdReference /
// PolicySetIdReference (spec.md §4.H, component H): it holds no nested
// tree of its own and instead resolves Ref through its Resolver at every
// Evaluate/EvaluateTarget call, so a dynamic Provider can serve a fresher
// target without rebuilding the whole tree.
type Reference struct {
	Ref      Ref
	Resolver *Resolver
}

func (r *Reference) GetID() string { return r.Ref.ID }

func (r *Reference) target() (policy.Decidable, *expr.Indeterminate) {
	d, err := r.Resolver.Root(r.Ref)
	if err != nil {
		return nil, expr.NewIndeterminate(status.ProcessingError, err.Error())
	}
	return d, nil
}

func (r *Reference) EvaluateTarget(ctx expr.Context) (bool, *expr.Indeterminate) {
	d, ind := r.target()
	if ind != nil {
		return false, ind
	}
	return d.EvaluateTarget(ctx)
}

func (r *Reference) Evaluate(ctx expr.Context) policy.EvaluationResult {
	d, ind := r.target()
	if ind != nil {
		return policy.EvaluationResult{Result: decision.IndeterminateResult(status.ExtendedDP, ind.Status)}
	}
	return d.Evaluate(ctx)
}

// Root resolves the configured root reference as a fresh path (depth 0).
func (r *Resolver) Root(ref Ref) (policy.Decidable, error) {
	return r.resolve(ref, map[string]bool{}, 0)
}

// Resolve is invoked (indirectly, through a PolicySet's own reference
// children) to follow one more PolicyIdReference/PolicySetIdReference hop
// along the current path.
func (r *Resolver) Resolve(ref Ref, path map[string]bool, depth int) (policy.Decidable, error) {
	return r.resolve(ref, path, depth)
}

// ValidateTree walks a fully linked PolicySet tree once at load time,
// confirming no reference cycle or depth overflow exists so evaluation
// never needs to repeat the check per request (spec.md §4.H, §9 "load-time
// fatal"). Only PolicySet exposes nested children in this implementation;
// Policy is always a leaf of the PolicySet tree.
func (r *Resolver) ValidateTree(root policy.Decidable) error {
	return r.walk(root, map[string]bool{}, 0)
}

func (r *Resolver) walk(d policy.Decidable, path map[string]bool, depth int) error {
	id := d.GetID()
	if depth > r.maxDepth {
		return fmt.Errorf("resolver: policy tree depth %d exceeds maxPolicyReferenceDepth %d at %q", depth, r.maxDepth, id)
	}
	if path[id] {
		return fmt.Errorf("resolver: policy reference cycle detected at %q", id)
	}
	if ref, ok := d.(*Reference); ok {
		target, err := r.resolve(ref.Ref, path, depth)
		if err != nil {
			return err
		}
		// target.GetID() == id (the Provider indexes by that same id), so
		// walking it through the generic path below would immediately see
		// path[id] already set and misreport a cycle. Mark id as in-path
		// for this one hop and descend directly into target's own
		// children instead of re-entering walk on target itself.
		path[id] = true
		defer delete(path, id)
		ps, ok := target.(*policy.PolicySet)
		if !ok {
			return nil
		}
		for _, child := range ps.Children {
			if err := r.walk(child, path, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	ps, ok := d.(*policy.PolicySet)
	if !ok {
		return nil
	}
	path[id] = true
	defer delete(path, id)
	for _, child := range ps.Children {
		if err := r.walk(child, path, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolve(ref Ref, path map[string]bool, depth int) (policy.Decidable, error) {
	if depth > r.maxDepth {
		return nil, fmt.Errorf("resolver: policy reference depth %d exceeds maxPolicyReferenceDepth %d", depth, r.maxDepth)
	}
	if path[ref.ID] {
		return nil, fmt.Errorf("resolver: policy reference cycle detected at %q", ref.ID)
	}
	d, ok, err := r.provider.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("resolver: resolving %q: %w", ref.ID, err)
	}
	if !ok {
		return nil, fmt.Errorf("resolver: unknown policy reference %q", ref.ID)
	}
	return d, nil
}

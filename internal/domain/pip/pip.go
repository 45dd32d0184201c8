// Package pip defines the Attribute Provider (Policy Information Point)
// contract EvaluationContext dispatches to when a designator isn't
// satisfied by the request itself, and the dependency-ordering helper used
// to wire providers that consume each other's output (spec.md §4.M).
package pip

import (
	"context"
	"fmt"

	"github.com/lattice-abac/pdp/internal/domain/value"
)

// Designator identifies the shape of attribute a Provider can serve.
type Designator struct {
	Category string
	ID       string
	Datatype value.Datatype
}

// Provider is an external attribute source consulted when a designator
// can't be resolved from the request's own named attributes.
type Provider interface {
	// Name uniquely identifies the provider for dependency-graph wiring
	// and diagnostics.
	Name() string
	// Provides lists every designator shape this provider can serve.
	Provides() []Designator
	// Requires lists designators this provider itself needs resolved
	// (typically by an earlier provider or the request) before it can run.
	Requires() []Designator
	// Resolve returns the bag of values for d, or an empty bag if the
	// provider has nothing to contribute (not an error).
	Resolve(ctx context.Context, d Designator, lookup func(Designator) (value.Bag, error)) (value.Bag, error)
}

// OrderProviders topologically sorts providers so that any provider whose
// Requires() designators are Provides() by another provider runs after it.
// It returns an error on a dependency cycle (spec.md §4.M).
func OrderProviders(providers []Provider) ([]Provider, error) {
	providedBy := make(map[Designator]string, len(providers))
	for _, p := range providers {
		for _, d := range p.Provides() {
			providedBy[d] = p.Name()
		}
	}

	type node struct {
		p        Provider
		deps     map[string]bool
		visited  bool
		visiting bool
	}
	nodes := make(map[string]*node, len(providers))
	for _, p := range providers {
		deps := make(map[string]bool)
		for _, req := range p.Requires() {
			if owner, ok := providedBy[req]; ok && owner != p.Name() {
				deps[owner] = true
			}
		}
		nodes[p.Name()] = &node{p: p, deps: deps}
	}

	var order []Provider
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		n, ok := nodes[name]
		if !ok {
			return nil
		}
		if n.visited {
			return nil
		}
		if n.visiting {
			return fmt.Errorf("pip: attribute provider dependency cycle: %v", append(path, name))
		}
		n.visiting = true
		for dep := range n.deps {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		n.visiting = false
		n.visited = true
		order = append(order, n.p)
		return nil
	}

	for _, p := range providers {
		if err := visit(p.Name(), nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

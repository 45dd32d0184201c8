// Package cel implements a derived-attribute Policy Information Point
// (spec.md §4.M) backed by google/cel-go: each designator it serves is
// computed by evaluating a compiled CEL expression over a small activation
// built from other designators it Requires. It follows the same
// compile-once/evaluate-with-cost-and-time-limits shape the teacher's CEL
// policy-condition evaluator uses.
package cel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/lattice-abac/pdp/internal/domain/pip"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// maxCostBudget bounds a single expression's CEL runtime cost, preventing a
// misconfigured derived-attribute expression from exhausting evaluation
// time on a hostile or pathological input.
const maxCostBudget = 100_000

// evalTimeout bounds a single expression's wall-clock evaluation time.
const evalTimeout = 2 * time.Second

// Var names one CEL activation variable after the designator that supplies
// its value; Datatype drives how the looked-up bag converts to a CEL value.
type Var struct {
	Ident      string
	Designator pip.Designator
}

// DesignatorExpr declares one designator a Provider computes: Expression is
// a CEL program over Vars, and Designator.Datatype is the datatype the
// result is coerced into.
type DesignatorExpr struct {
	Designator pip.Designator
	Expression string
	Vars       []Var
}

type compiledDesignator struct {
	def DesignatorExpr
	prg cel.Program
}

// Provider is a pip.Provider that resolves a fixed set of designators by
// evaluating CEL expressions, each over the subset of other designators it
// declares as Vars (its Requires()).
type Provider struct {
	name     string
	compiled map[pip.Designator]compiledDesignator
	provides []pip.Designator
	requires []pip.Designator
}

// NewProvider compiles every definition's expression against an env
// declaring exactly its own Vars as cel.DynType variables, so one
// designator's expression can't accidentally reference another's private
// inputs.
func NewProvider(name string, defs []DesignatorExpr) (*Provider, error) {
	p := &Provider{name: name, compiled: make(map[pip.Designator]compiledDesignator, len(defs))}

	requiredSet := make(map[pip.Designator]bool)
	for _, def := range defs {
		opts := make([]cel.EnvOption, 0, len(def.Vars))
		for _, v := range def.Vars {
			opts = append(opts, cel.Variable(v.Ident, cel.DynType))
			requiredSet[v.Designator] = true
		}
		env, err := cel.NewEnv(opts...)
		if err != nil {
			return nil, fmt.Errorf("cel provider %s: building env for %s: %w", name, def.Designator.ID, err)
		}
		ast, issues := env.Compile(def.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("cel provider %s: compiling %s: %w", name, def.Designator.ID, issues.Err())
		}
		prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize), cel.CostLimit(maxCostBudget))
		if err != nil {
			return nil, fmt.Errorf("cel provider %s: building program for %s: %w", name, def.Designator.ID, err)
		}
		p.compiled[def.Designator] = compiledDesignator{def: def, prg: prg}
		p.provides = append(p.provides, def.Designator)
	}
	for d := range requiredSet {
		if _, providedHere := p.compiled[d]; !providedHere {
			p.requires = append(p.requires, d)
		}
	}
	return p, nil
}

func (p *Provider) Name() string               { return p.name }
func (p *Provider) Provides() []pip.Designator  { return p.provides }
func (p *Provider) Requires() []pip.Designator { return p.requires }

// Resolve evaluates the designator's CEL expression, looking up each
// declared Var through lookup and converting the CEL result to d.Datatype.
// An unresolvable Var or a non-boolean/string/int/double result yields an
// empty bag, not an error: a derived attribute that can't be computed is
// simply absent, same as one the request never supplied.
func (p *Provider) Resolve(ctx context.Context, d pip.Designator, lookup func(pip.Designator) (value.Bag, error)) (value.Bag, error) {
	c, ok := p.compiled[d]
	if !ok {
		return value.EmptyBag(d.Datatype), nil
	}

	activation := make(map[string]any, len(c.def.Vars))
	for _, v := range c.def.Vars {
		bag, err := lookup(v.Designator)
		if err != nil {
			return value.EmptyBag(d.Datatype), nil
		}
		if bag.IsEmpty() {
			return value.EmptyBag(d.Datatype), nil
		}
		activation[v.Ident] = bag.Values[0].Raw()
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	out, _, err := c.prg.ContextEval(evalCtx, activation)
	if err != nil {
		return value.EmptyBag(d.Datatype), nil
	}

	av, ok := toAttributeValue(d.Datatype, out.Value())
	if !ok {
		return value.EmptyBag(d.Datatype), nil
	}
	return value.NewBag(d.Datatype, av), nil
}

func toAttributeValue(dt value.Datatype, v any) (value.AttributeValue, bool) {
	switch dt {
	case value.TypeBoolean:
		b, ok := v.(bool)
		return value.New(dt, b), ok
	case value.TypeString, value.TypeAnyURI, value.TypeX500Name, value.TypeRFC822Name:
		s, ok := v.(string)
		return value.New(dt, s), ok
	case value.TypeInteger:
		switch n := v.(type) {
		case int64:
			return value.New(dt, n), true
		case int:
			return value.New(dt, int64(n)), true
		}
		return value.AttributeValue{}, false
	case value.TypeDouble:
		switch n := v.(type) {
		case float64:
			return value.New(dt, n), true
		case int64:
			return value.New(dt, float64(n)), true
		}
		return value.AttributeValue{}, false
	default:
		return value.AttributeValue{}, false
	}
}

var _ pip.Provider = (*Provider)(nil)

package expr

import (
	"fmt"

	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// Literal is a constant AttributeValue embedded directly in a policy
// (the <AttributeValue> element).
type Literal struct {
	V value.AttributeValue
}

func (l *Literal) ReturnType() value.Datatype          { return l.V.Type() }
func (l *Literal) ReturnsBag() bool                     { return false }
func (l *Literal) Evaluate(Context) (Result, error) { return Single(l.V), nil }

// Designator resolves an AttributeDesignator against the request context.
// Designators always evaluate to a bag (spec.md §4.B): the request may
// supply zero, one, or many values under a single AttributeId.
type Designator struct {
	Fqn           value.AttributeFqn
	Datatype      value.Datatype
	MustBePresent bool
}

func (d *Designator) ReturnType() value.Datatype { return d.Datatype }
func (d *Designator) ReturnsBag() bool            { return true }

func (d *Designator) Evaluate(ctx Context) (Result, error) {
	bag, err := ctx.ResolveDesignator(d.Fqn, d.Datatype, d.MustBePresent)
	if err != nil {
		return Result{}, err
	}
	return OfBag(bag), nil
}

// Selector resolves an AttributeSelector (an XPath-like path into the
// content of a category) against the request context.
type Selector struct {
	Category          string
	Path              string
	Datatype          value.Datatype
	MustBePresent     bool
	ContextSelectorID string
}

func (s *Selector) ReturnType() value.Datatype { return s.Datatype }
func (s *Selector) ReturnsBag() bool            { return true }

func (s *Selector) Evaluate(ctx Context) (Result, error) {
	bag, err := ctx.ResolveSelector(s.Category, s.Path, s.Datatype, s.MustBePresent, s.ContextSelectorID)
	if err != nil {
		return Result{}, err
	}
	return OfBag(bag), nil
}

// VariableRef resolves a <VariableReference> by id, delegating to the
// context's memoized VariableDefinition evaluation.
type VariableRef struct {
	ID           string
	Datatype     value.Datatype
	IsBagValued bool
}

func (v *VariableRef) ReturnType() value.Datatype { return v.Datatype }
func (v *VariableRef) ReturnsBag() bool            { return v.IsBagValued }

func (v *VariableRef) Evaluate(ctx Context) (Result, error) {
	return ctx.ResolveVariable(v.ID)
}

// FunctionRef wraps a Function as a value, used only as the first argument
// of higher-order functions (any-of, all-of, map, ...). It cannot be
// evaluated on its own.
type FunctionRef struct {
	Fn Function
}

func (f *FunctionRef) ReturnType() value.Datatype { return value.Datatype("") }
func (f *FunctionRef) ReturnsBag() bool            { return false }

func (f *FunctionRef) Evaluate(Context) (Result, error) {
	return Result{}, NewIndeterminate(status.ProcessingError,
		fmt.Sprintf("function %q referenced as a value cannot be evaluated directly", f.Fn.ID()))
}

// Apply invokes a Function against a fixed argument-expression list. The
// argument list is validated against the function's Signature at
// construction time (policy load), not at evaluation time.
type Apply struct {
	Fn   Function
	Args []Expression
}

// NewApply validates args against fn's signature and, if compatible,
// returns a ready-to-evaluate Apply node.
func NewApply(fn Function, args []Expression) (*Apply, error) {
	sig := fn.Signature()
	if err := validateArgs(sig, args); err != nil {
		return nil, fmt.Errorf("function %q: %w", fn.ID(), err)
	}
	return &Apply{Fn: fn, Args: args}, nil
}

func validateArgs(sig Signature, args []Expression) error {
	n := len(sig.Params)
	if sig.Variadic {
		if len(args) < n-1 {
			return fmt.Errorf("expected at least %d arguments, got %d", n-1, len(args))
		}
	} else if len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	for i, a := range args {
		p := sig.Params[i]
		if i >= n {
			p = sig.Params[n-1]
		}
		switch p.Kind {
		case ParamFunction:
			if _, ok := a.(*FunctionRef); !ok {
				return fmt.Errorf("argument %d: expected a function reference", i)
			}
		case ParamBag:
			if !a.ReturnsBag() {
				return fmt.Errorf("argument %d: expected a bag of %s, got a scalar %s", i, p.Type, a.ReturnType())
			}
			if p.Type != "" && a.ReturnType() != p.Type {
				return fmt.Errorf("argument %d: expected bag of %s, got bag of %s", i, p.Type, a.ReturnType())
			}
		case ParamValue:
			if a.ReturnsBag() {
				return fmt.Errorf("argument %d: expected a scalar %s, got a bag", i, p.Type)
			}
			if p.Type != "" && a.ReturnType() != p.Type {
				return fmt.Errorf("argument %d: expected %s, got %s", i, p.Type, a.ReturnType())
			}
		}
	}
	return nil
}

func (a *Apply) ReturnType() value.Datatype { return a.Fn.Signature().Return }
func (a *Apply) ReturnsBag() bool            { return a.Fn.Signature().ReturnsBag }

func (a *Apply) Evaluate(ctx Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, NewIndeterminate(status.ProcessingError, "evaluation deadline exceeded")
	default:
	}
	return a.Fn.Call(ctx, a.Args)
}

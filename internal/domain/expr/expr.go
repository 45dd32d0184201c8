// Package expr implements the XACML expression model: the closed set of
// node kinds (AttributeValue literal, AttributeDesignator, AttributeSelector,
// VariableReference, Apply, Function-as-value) that compose Condition and
// Target predicates, and the Function contract that Apply nodes invoke
// (spec.md §4.B).
package expr

import (
	"errors"
	"time"

	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// Result is the outcome of evaluating an Expression: either a single
// primitive value or a bag, never both. Which field is meaningful is
// determined by IsBag.
type Result struct {
	IsBag bool
	Value value.AttributeValue
	Bag   value.Bag
}

// Single wraps a scalar AttributeValue as a Result.
func Single(v value.AttributeValue) Result { return Result{Value: v} }

// OfBag wraps a Bag as a Result.
func OfBag(b value.Bag) Result { return Result{IsBag: true, Bag: b} }

// Indeterminate is the error type produced when expression evaluation
// cannot reach a definite result. It always carries a Status and, where the
// expression sits inside a Condition or Target, the Extended Indeterminate
// annotation is computed by the caller from context — Indeterminate itself
// only carries the evaluation failure.
type Indeterminate struct {
	Status status.Status
}

func (i *Indeterminate) Error() string { return string(i.Status.Code) + ": " + i.Status.Message }

// NewIndeterminate builds an *Indeterminate from a status code and message.
func NewIndeterminate(code status.Code, message string) *Indeterminate {
	return &Indeterminate{Status: status.New(code, message)}
}

// AsIndeterminate reports whether err is (or wraps) an *Indeterminate.
func AsIndeterminate(err error) (*Indeterminate, bool) {
	var ind *Indeterminate
	ok := errors.As(err, &ind)
	return ind, ok
}

// StatusFromError extracts the Status an Indeterminate err carries, or
// wraps any other evaluation error as a generic processing-error Status.
func StatusFromError(err error) status.Status {
	if ind, ok := AsIndeterminate(err); ok {
		return ind.Status
	}
	return status.New(status.ProcessingError, err.Error())
}

// Context is the evaluation-time environment an Expression is resolved
// against. It is implemented by package evalctx; defining it here (rather
// than importing evalctx) keeps the dependency edge pointing inward, since
// evalctx must itself hold Expression trees (VariableDefinitions).
type Context interface {
	// ResolveDesignator returns the bag of values named by fqn. If no value
	// is found and mustBePresent is true, it returns a non-nil
	// *Indeterminate with MissingAttribute status; otherwise it returns an
	// empty bag and a nil error.
	ResolveDesignator(fqn value.AttributeFqn, dt value.Datatype, mustBePresent bool) (value.Bag, error)

	// ResolveSelector evaluates an XPath-like selector against the content
	// of the named category, returning the matched bag.
	ResolveSelector(category, path string, dt value.Datatype, mustBePresent bool, contextSelectorID string) (value.Bag, error)

	// ResolveVariable evaluates (and memoizes) the VariableDefinition
	// registered under id.
	ResolveVariable(id string) (Result, error)

	// Deadline reports the evaluation's cutoff, if any, mirroring
	// context.Context so function implementations that loop over bags can
	// bail out early on a request-wide timeout.
	Deadline() (time.Time, bool)
	Done() <-chan struct{}
}

// Expression is any evaluable node in the expression tree.
type Expression interface {
	// ReturnType is the primitive datatype this expression yields, or the
	// datatype of its bag's elements when ReturnsBag is true.
	ReturnType() value.Datatype
	ReturnsBag() bool
	Evaluate(ctx Context) (Result, error)
}

// ParamKind distinguishes the three shapes a Function parameter may take.
type ParamKind int

const (
	// ParamValue is a single primitive value of the declared Datatype.
	ParamValue ParamKind = iota
	// ParamBag is a bag of the declared Datatype.
	ParamBag
	// ParamFunction is a higher-order sub-function reference (any-of, map, ...).
	ParamFunction
)

// Param describes one declared parameter of a Function signature.
type Param struct {
	Kind Kind
	Type value.Datatype
}

// Kind re-exports ParamKind under the name used by Param, kept distinct so
// call sites read "Param{Kind: expr.ParamBag, ...}".
type Kind = ParamKind

// Signature describes a Function's arity and types for Apply construction.
type Signature struct {
	Params   []Param
	Variadic bool // the last Param repeats zero or more times
	Return   value.Datatype
	ReturnsBag bool
}

// Function is a named, typed operation an Apply node invokes. Argument
// evaluation strategy (eager vs. lazy/short-circuit) is an implementation
// detail of Call: Call always receives the unevaluated argument
// expressions so that short-circuiting functions (or, and, n-of, the
// higher-order any-of/all-of family) can avoid evaluating arguments whose
// result cannot change the outcome.
type Function interface {
	ID() string
	Signature() Signature
	Call(ctx Context, args []Expression) (Result, error)
}

// VariableScope is implemented by a Context that supports temporarily
// overlaying a Policy's own VariableDefinitions so VariableReference
// resolves against the Policy that declared it, rather than whatever
// table a previously-entered Policy left in place (spec.md §4.G).
// Contexts with nothing to scope (e.g. a test double with no variables at
// all) simply don't implement it.
type VariableScope interface {
	// PushVariables overlays vars for the duration of one Policy's
	// evaluation and returns a function that restores the prior table.
	PushVariables(vars map[string]Expression) (pop func())
}

// EvalAll evaluates every expression in args against ctx, in order,
// returning the first Indeterminate encountered. It is the helper eager
// functions use to get ordinary call semantics.
func EvalAll(ctx Context, args []Expression) ([]Result, error) {
	out := make([]Result, len(args))
	for i, a := range args {
		r, err := a.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

package target

import (
	"testing"
	"time"

	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

type fakeCtx struct{ done chan struct{} }

func newFakeCtx() *fakeCtx { return &fakeCtx{done: make(chan struct{})} }

func (f *fakeCtx) ResolveDesignator(value.AttributeFqn, value.Datatype, bool) (value.Bag, error) {
	return value.Bag{}, nil
}
func (f *fakeCtx) ResolveSelector(string, string, value.Datatype, bool, string) (value.Bag, error) {
	return value.Bag{}, nil
}
func (f *fakeCtx) ResolveVariable(string) (expr.Result, error) { return expr.Result{}, nil }
func (f *fakeCtx) Deadline() (time.Time, bool)                  { return time.Time{}, false }
func (f *fakeCtx) Done() <-chan struct{}                        { return f.done }

type bagExpr struct{ b value.Bag }

func (b bagExpr) ReturnType() value.Datatype                     { return b.b.Type }
func (b bagExpr) ReturnsBag() bool                                { return true }
func (b bagExpr) Evaluate(expr.Context) (expr.Result, error) { return expr.OfBag(b.b), nil }

type indeterminateBagExpr struct{}

func (indeterminateBagExpr) ReturnType() value.Datatype { return value.TypeString }
func (indeterminateBagExpr) ReturnsBag() bool            { return true }
func (indeterminateBagExpr) Evaluate(expr.Context) (expr.Result, error) {
	return expr.Result{}, expr.NewIndeterminate(status.MissingAttribute, "no values")
}

func strVal(t *testing.T, s string) value.AttributeValue {
	t.Helper()
	v, err := value.Parse(value.TypeString, s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// equalFn is a minimal string-equal stand-in, avoiding an import of the
// function package (which would create an import cycle with its tests).
type equalFn struct{}

func (equalFn) ID() string { return "test:string-equal" }
func (equalFn) Signature() expr.Signature {
	return expr.Signature{Params: []expr.Param{{Kind: expr.ParamValue, Type: value.TypeString}, {Kind: expr.ParamValue, Type: value.TypeString}}, Return: value.TypeBoolean}
}
func (equalFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	return expr.Single(value.New(value.TypeBoolean, results[0].Value.Equal(results[1].Value))), nil
}

func TestMatchTrueIfAnyBagValueMatches(t *testing.T) {
	m := Match{
		Fn:      equalFn{},
		Literal: &expr.Literal{V: strVal(t, "admin")},
		Input:   bagExpr{b: value.NewBag(value.TypeString, strVal(t, "user"), strVal(t, "admin"))},
	}
	ok, ind := false, (*expr.Indeterminate)(nil)
	o := m.evaluate(newFakeCtx())
	ok, ind = o.value && !o.indeterminate, o.cause
	if !ok || ind != nil {
		t.Fatalf("expected match true, got value=%v indeterminate=%v cause=%v", o.value, o.indeterminate, ind)
	}
}

func TestMatchFalseIfNoneMatch(t *testing.T) {
	m := Match{
		Fn:      equalFn{},
		Literal: &expr.Literal{V: strVal(t, "admin")},
		Input:   bagExpr{b: value.NewBag(value.TypeString, strVal(t, "user"))},
	}
	o := m.evaluate(newFakeCtx())
	if o.value || o.indeterminate {
		t.Fatalf("expected match false, got %+v", o)
	}
}

func TestMatchIndeterminateWhenInputFails(t *testing.T) {
	m := Match{Fn: equalFn{}, Literal: &expr.Literal{V: strVal(t, "admin")}, Input: indeterminateBagExpr{}}
	o := m.evaluate(newFakeCtx())
	if !o.indeterminate {
		t.Fatalf("expected indeterminate, got %+v", o)
	}
}

func TestAllOfRequiresAllMatches(t *testing.T) {
	trueMatch := Match{Fn: equalFn{}, Literal: &expr.Literal{V: strVal(t, "a")}, Input: bagExpr{b: value.NewBag(value.TypeString, strVal(t, "a"))}}
	falseMatch := Match{Fn: equalFn{}, Literal: &expr.Literal{V: strVal(t, "b")}, Input: bagExpr{b: value.NewBag(value.TypeString, strVal(t, "a"))}}

	allOf := AllOf{Matches: []Match{trueMatch, trueMatch}}
	if o := allOf.evaluate(newFakeCtx()); !o.value || o.indeterminate {
		t.Fatalf("expected all-true AllOf to match, got %+v", o)
	}

	allOf2 := AllOf{Matches: []Match{trueMatch, falseMatch}}
	if o := allOf2.evaluate(newFakeCtx()); o.value || o.indeterminate {
		t.Fatalf("expected one-false AllOf to not match, got %+v", o)
	}
}

func TestAllOfFalseAbsorbsIndeterminate(t *testing.T) {
	falseMatch := Match{Fn: equalFn{}, Literal: &expr.Literal{V: strVal(t, "b")}, Input: bagExpr{b: value.NewBag(value.TypeString, strVal(t, "a"))}}
	indMatch := Match{Fn: equalFn{}, Literal: &expr.Literal{V: strVal(t, "a")}, Input: indeterminateBagExpr{}}

	allOf := AllOf{Matches: []Match{falseMatch, indMatch}}
	o := allOf.evaluate(newFakeCtx())
	if o.value || o.indeterminate {
		t.Fatalf("a false match must absorb an indeterminate sibling, got %+v", o)
	}
}

func TestAnyOfTrueAbsorbsIndeterminate(t *testing.T) {
	trueAllOf := AllOf{Matches: []Match{{Fn: equalFn{}, Literal: &expr.Literal{V: strVal(t, "a")}, Input: bagExpr{b: value.NewBag(value.TypeString, strVal(t, "a"))}}}}
	indAllOf := AllOf{Matches: []Match{{Fn: equalFn{}, Literal: &expr.Literal{V: strVal(t, "a")}, Input: indeterminateBagExpr{}}}}

	anyOf := AnyOf{AllOfs: []AllOf{trueAllOf, indAllOf}}
	o := anyOf.evaluate(newFakeCtx())
	if !o.value || o.indeterminate {
		t.Fatalf("a true AllOf must absorb an indeterminate sibling, got %+v", o)
	}
}

func TestEmptyTargetMatchesAll(t *testing.T) {
	tgt := Target{}
	ok, ind := tgt.Evaluate(newFakeCtx())
	if !ok || ind != nil {
		t.Fatalf("expected empty target to match unconditionally, got ok=%v ind=%v", ok, ind)
	}
}

func TestTargetIndeterminateWhenNoFalseButSomeIndeterminate(t *testing.T) {
	indAnyOf := AnyOf{AllOfs: []AllOf{{Matches: []Match{{Fn: equalFn{}, Literal: &expr.Literal{V: strVal(t, "a")}, Input: indeterminateBagExpr{}}}}}}
	tgt := Target{AnyOfs: []AnyOf{indAnyOf}}
	ok, ind := tgt.Evaluate(newFakeCtx())
	if ok || ind == nil {
		t.Fatalf("expected indeterminate target, got ok=%v ind=%v", ok, ind)
	}
}

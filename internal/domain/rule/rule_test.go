package rule

import (
	"testing"
	"time"

	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/target"
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

func boolLit(b bool) expr.Expression {
	return &expr.Literal{V: value.New(value.TypeBoolean, b)}
}

type indeterminateBool struct{}

func (indeterminateBool) ReturnType() value.Datatype { return value.TypeBoolean }
func (indeterminateBool) ReturnsBag() bool            { return false }
func (indeterminateBool) Evaluate(expr.Context) (expr.Result, error) {
	return expr.Result{}, expr.NewIndeterminate(status.ProcessingError, "boom")
}

func TestRuleNotApplicableOnTargetMismatch(t *testing.T) {
	falseMatch := target.Target{AnyOfs: []target.AnyOf{}}
	_ = falseMatch // an empty target always matches; build a genuinely false one below
	r := Rule{ID: "r1", Effect: decision.Permit, Target: mismatchTarget(t)}
	res := r.Evaluate(newFakeCtx())
	if res.Decision != decision.DecisionNotApplicable {
		t.Fatalf("expected NotApplicable, got %v", res.Decision)
	}
}

// equalFn/bagExpr duplicated minimally here (not imported from function
// package) to keep this package's tests free of cross-package cycles.
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

type bagExpr struct{ b value.Bag }

func (b bagExpr) ReturnType() value.Datatype                     { return b.b.Type }
func (b bagExpr) ReturnsBag() bool                                { return true }
func (b bagExpr) Evaluate(expr.Context) (expr.Result, error) { return expr.OfBag(b.b), nil }

func mismatchTarget(t *testing.T) target.Target {
	t.Helper()
	a, _ := value.Parse(value.TypeString, "a")
	b, _ := value.Parse(value.TypeString, "b")
	m := target.Match{Fn: equalFn{}, Literal: &expr.Literal{V: a}, Input: bagExpr{b: value.NewBag(value.TypeString, b)}}
	return target.Target{AnyOfs: []target.AnyOf{{AllOfs: []target.AllOf{{Matches: []target.Match{m}}}}}}
}

func TestRulePermitWhenConditionTrue(t *testing.T) {
	r := Rule{ID: "r1", Effect: decision.Permit, Condition: &Condition{Expr: boolLit(true)}}
	res := r.Evaluate(newFakeCtx())
	if res.Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit, got %v", res.Decision)
	}
}

func TestRuleNotApplicableWhenConditionFalse(t *testing.T) {
	r := Rule{ID: "r1", Effect: decision.Deny, Condition: &Condition{Expr: boolLit(false)}}
	res := r.Evaluate(newFakeCtx())
	if res.Decision != decision.DecisionNotApplicable {
		t.Fatalf("expected NotApplicable, got %v", res.Decision)
	}
}

func TestRuleIndeterminateWhenConditionFails(t *testing.T) {
	r := Rule{ID: "r1", Effect: decision.Deny, Condition: &Condition{Expr: indeterminateBool{}}}
	res := r.Evaluate(newFakeCtx())
	if res.Decision != decision.DecisionIndeterminate {
		t.Fatalf("expected Indeterminate, got %v", res.Decision)
	}
	if res.Extended != status.ExtendedD {
		t.Errorf("expected ExtendedD for a Deny rule, got %v", res.Extended)
	}
}

func TestRuleObligationsAndAdviceEvaluatedOnMatch(t *testing.T) {
	r := Rule{
		ID:     "r1",
		Effect: decision.Permit,
		Obligations: []ObligationExpression{
			{ID: "log", FulfillOn: decision.Permit, Assignments: []AttributeAssignment{
				{AttributeID: "msg", Category: "obligation", Expr: strLit("granted")},
			}},
			{ID: "skip-on-deny", FulfillOn: decision.Deny},
		},
		Advice: []AdviceExpression{
			{ID: "hint", AppliesTo: decision.Permit, Assignments: []AttributeAssignment{
				{AttributeID: "note", Category: "advice", Expr: strLit("be careful")},
			}},
		},
	}
	res := r.Evaluate(newFakeCtx())
	if res.Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit, got %v", res.Decision)
	}
	if len(res.Obligations) != 1 || res.Obligations[0].ID != "log" {
		t.Fatalf("expected only the Permit-side obligation, got %+v", res.Obligations)
	}
	if len(res.Obligations[0].Assignments) != 1 || res.Obligations[0].Assignments[0].AttributeID != "msg" {
		t.Fatalf("expected the assignment to be evaluated, got %+v", res.Obligations[0].Assignments)
	}
	if len(res.Advice) != 1 || res.Advice[0].ID != "hint" {
		t.Fatalf("expected the Permit-side advice, got %+v", res.Advice)
	}
}

func TestRuleIndeterminateWhenObligationAssignmentFails(t *testing.T) {
	r := Rule{
		ID:     "r1",
		Effect: decision.Permit,
		Obligations: []ObligationExpression{
			{ID: "bad", FulfillOn: decision.Permit, Assignments: []AttributeAssignment{
				{AttributeID: "msg", Category: "obligation", Expr: indeterminateBool{}},
			}},
		},
	}
	res := r.Evaluate(newFakeCtx())
	if res.Decision != decision.DecisionIndeterminate {
		t.Fatalf("expected Indeterminate when an obligation assignment fails to evaluate, got %v", res.Decision)
	}
	if res.Extended != status.ExtendedP {
		t.Errorf("expected ExtendedP (the rule's own Effect was Permit), got %v", res.Extended)
	}
}

func TestRuleIndeterminateWhenAdviceAssignmentFails(t *testing.T) {
	r := Rule{
		ID:     "r1",
		Effect: decision.Deny,
		Advice: []AdviceExpression{
			{ID: "bad", AppliesTo: decision.Deny, Assignments: []AttributeAssignment{
				{AttributeID: "msg", Category: "advice", Expr: indeterminateBool{}},
			}},
		},
	}
	res := r.Evaluate(newFakeCtx())
	if res.Decision != decision.DecisionIndeterminate {
		t.Fatalf("expected Indeterminate when an advice assignment fails to evaluate, got %v", res.Decision)
	}
	if res.Extended != status.ExtendedD {
		t.Errorf("expected ExtendedD (the rule's own Effect was Deny), got %v", res.Extended)
	}
}

func TestEvaluateAssignmentsExpandsBag(t *testing.T) {
	a, _ := value.Parse(value.TypeString, "a")
	b, _ := value.Parse(value.TypeString, "b")
	assignments := []AttributeAssignment{
		{AttributeID: "roles", Category: "subject", Expr: bagExpr{b: value.NewBag(value.TypeString, a, b)}},
	}
	out, err := EvaluateAssignments(newFakeCtx(), assignments)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected the bag to expand into 2 assignments, got %d", len(out))
	}
}

func strLit(s string) expr.Expression {
	v, _ := value.Parse(value.TypeString, s)
	return &expr.Literal{V: v}
}

func TestRuleNoConditionDefaultsToEffect(t *testing.T) {
	r := Rule{ID: "r1", Effect: decision.Permit}
	res := r.Evaluate(newFakeCtx())
	if res.Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit with no condition, got %v", res.Decision)
	}
}

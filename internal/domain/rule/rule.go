// Package rule implements Condition evaluation and the Rule evaluator: the
// smallest Decidable in the XACML tree (spec.md §4.D-E).
package rule

import (
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/response"
	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/target"
)

// ObligationExpression and AdviceExpression carry the identifiers and
// attribute-assignment expressions a Rule contributes to the decision
// result when its FulfillOn/AppliesTo Effect equals the final Decision.
type AttributeAssignment struct {
	AttributeID string
	Category    string
	Expr        expr.Expression
}

type ObligationExpression struct {
	ID         string
	FulfillOn  decision.Effect
	Assignments []AttributeAssignment
}

type AdviceExpression struct {
	ID         string
	AppliesTo  decision.Effect
	Assignments []AttributeAssignment
}

// Condition wraps the boolean expression gating whether a matched Rule's
// Effect applies.
type Condition struct {
	Expr expr.Expression
}

// Evaluate returns true/false, or an *expr.Indeterminate on evaluation
// failure or a non-boolean result.
func (c Condition) Evaluate(ctx expr.Context) (bool, *expr.Indeterminate) {
	r, err := c.Expr.Evaluate(ctx)
	if err != nil {
		if ind, ok := expr.AsIndeterminate(err); ok {
			return false, ind
		}
		return false, expr.NewIndeterminate(status.ProcessingError, err.Error())
	}
	b, ok := r.Value.Raw().(bool)
	if !ok {
		return false, expr.NewIndeterminate(status.ProcessingError, "condition did not evaluate to a boolean")
	}
	return b, nil
}

// Rule is the leaf Decidable of the policy tree.
type Rule struct {
	ID          string
	Effect      decision.Effect
	Target      target.Target
	Condition   *Condition // nil means "always true"
	Obligations []ObligationExpression
	Advice      []AdviceExpression
}

// Result is a Rule's decision.Result plus the obligation/advice assignments
// it contributes, already evaluated against the ctx the Rule was run
// against (spec.md §4.E step 3/4).
type Result struct {
	decision.Result
	Obligations []response.Obligation
	Advice      []response.Advice
}

// EvaluateAssignments evaluates each AttributeAssignment's expression
// against ctx, expanding a bag-valued result into one
// response.AttributeAssignment per bag member (XACML 3.0 §5.36). It returns
// the first evaluation error encountered rather than skipping the failing
// assignment, since a single Indeterminate assignment must fail the whole
// enclosing obligation/advice expression (spec.md §4.E step 3, §4.G step 4).
func EvaluateAssignments(ctx expr.Context, assignments []AttributeAssignment) ([]response.AttributeAssignment, error) {
	var out []response.AttributeAssignment
	for _, a := range assignments {
		r, err := a.Expr.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		if r.IsBag {
			for _, v := range r.Bag.Values {
				out = append(out, response.AttributeAssignment{AttributeID: a.AttributeID, Category: a.Category, Value: v})
			}
			continue
		}
		out = append(out, response.AttributeAssignment{AttributeID: a.AttributeID, Category: a.Category, Value: r.Value})
	}
	return out, nil
}

// EvaluateObligations evaluates every ObligationExpression whose FulfillOn
// equals effect, stopping at the first assignment-evaluation error.
func EvaluateObligations(ctx expr.Context, effect decision.Effect, exprs []ObligationExpression) ([]response.Obligation, error) {
	var out []response.Obligation
	for _, o := range exprs {
		if o.FulfillOn != effect {
			continue
		}
		assignments, err := EvaluateAssignments(ctx, o.Assignments)
		if err != nil {
			return nil, err
		}
		out = append(out, response.Obligation{ID: o.ID, Assignments: assignments})
	}
	return out, nil
}

// EvaluateAdvice evaluates every AdviceExpression whose AppliesTo equals
// effect, stopping at the first assignment-evaluation error.
func EvaluateAdvice(ctx expr.Context, effect decision.Effect, exprs []AdviceExpression) ([]response.Advice, error) {
	var out []response.Advice
	for _, a := range exprs {
		if a.AppliesTo != effect {
			continue
		}
		assignments, err := EvaluateAssignments(ctx, a.Assignments)
		if err != nil {
			return nil, err
		}
		out = append(out, response.Advice{ID: a.ID, Assignments: assignments})
	}
	return out, nil
}

// Evaluate implements spec.md §4.D-E: a Rule is NotApplicable if its Target
// does not match, Indeterminate (with Extended set from its own Effect) if
// target matching, its Condition, or one of its own obligation/advice
// attribute-assignment expressions fails, and otherwise contributes its
// Effect plus its evaluated obligations/advice.
func (r Rule) Evaluate(ctx expr.Context) Result {
	matched, ind := r.Target.Evaluate(ctx)
	if ind != nil {
		return Result{Result: decision.IndeterminateResult(decision.ExtendedFor(r.Effect), ind.Status)}
	}
	if !matched {
		return Result{Result: decision.NotApplicableResult()}
	}

	if r.Condition != nil {
		ok, ind := r.Condition.Evaluate(ctx)
		if ind != nil {
			return Result{Result: decision.IndeterminateResult(decision.ExtendedFor(r.Effect), ind.Status)}
		}
		if !ok {
			return Result{Result: decision.NotApplicableResult()}
		}
	}

	obligations, err := EvaluateObligations(ctx, r.Effect, r.Obligations)
	if err != nil {
		return Result{Result: decision.IndeterminateResult(decision.ExtendedFor(r.Effect), expr.StatusFromError(err))}
	}
	advice, err := EvaluateAdvice(ctx, r.Effect, r.Advice)
	if err != nil {
		return Result{Result: decision.IndeterminateResult(decision.ExtendedFor(r.Effect), expr.StatusFromError(err))}
	}

	if r.Effect == decision.Permit {
		return Result{Result: decision.PermitResult(), Obligations: obligations, Advice: advice}
	}
	return Result{Result: decision.DenyResult(), Obligations: obligations, Advice: advice}
}

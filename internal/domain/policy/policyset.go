package policy

import (
	"github.com/lattice-abac/pdp/internal/domain/combining"
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/rule"
	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/target"
)

// PolicySet combines a list of nested Policy/PolicySet Decidables under a
// single policy-combining algorithm.
type PolicySet struct {
	ID                    string
	Target                target.Target
	CombiningAlgorithm    combining.Algorithm
	Children              []Decidable
	ObligationExpressions []rule.ObligationExpression
	AdviceExpressions     []rule.AdviceExpression
}

func (ps *PolicySet) GetID() string { return ps.ID }

func (ps *PolicySet) EvaluateTarget(ctx expr.Context) (bool, *expr.Indeterminate) {
	return ps.Target.Evaluate(ctx)
}

// decidableRecorder mirrors ruleRecorder one level up the tree, memoizing
// each nested Decidable's EvaluationResult for obligation/advice filtering.
type decidableRecorder struct {
	children  []Decidable
	ctx       expr.Context
	results   []EvaluationResult
	evaluated []bool
}

func newDecidableRecorder(children []Decidable, ctx expr.Context) *decidableRecorder {
	return &decidableRecorder{
		children:  children,
		ctx:       ctx,
		results:   make([]EvaluationResult, len(children)),
		evaluated: make([]bool, len(children)),
	}
}

func (r *decidableRecorder) asChildren() []combining.Child {
	out := make([]combining.Child, len(r.children))
	for i := range r.children {
		out[i] = &decidableChild{rec: r, idx: i}
	}
	return out
}

type decidableChild struct {
	rec *decidableRecorder
	idx int
}

func (c *decidableChild) Matches() (bool, *expr.Indeterminate) {
	return c.rec.children[c.idx].EvaluateTarget(c.rec.ctx)
}

func (c *decidableChild) Evaluate() decision.Result {
	res := c.rec.children[c.idx].Evaluate(c.rec.ctx)
	c.rec.results[c.idx] = res
	c.rec.evaluated[c.idx] = true
	return res.Result
}

// Evaluate implements spec.md §4.G for PolicySet: same shape as Policy,
// one level up, additionally re-propagating (rather than re-filtering) the
// obligations/advice each matching child already evaluated against its own
// decision, since a nested Policy's FulfillOn is evaluated against its own
// Decision, not the PolicySet's. An Indeterminate attribute-assignment
// expression in this PolicySet's own obligations/advice turns the whole
// decision Indeterminate (spec.md §4.G step 4).
func (ps *PolicySet) Evaluate(ctx expr.Context) EvaluationResult {
	matched, ind := ps.Target.Evaluate(ctx)
	if ind != nil {
		return EvaluationResult{Result: decision.IndeterminateResult(status.ExtendedDP, ind.Status)}
	}
	if !matched {
		return EvaluationResult{Result: decision.NotApplicableResult()}
	}

	rec := newDecidableRecorder(ps.Children, ctx)
	combined := rec.combine(ps.CombiningAlgorithm)

	if combined.Decision != decision.DecisionPermit && combined.Decision != decision.DecisionDeny {
		return EvaluationResult{Result: combined}
	}
	effect := decision.Effect(combined.Decision)

	obligations, err := rule.EvaluateObligations(ctx, effect, ps.ObligationExpressions)
	if err != nil {
		return EvaluationResult{Result: decision.IndeterminateResult(decision.ExtendedFor(effect), expr.StatusFromError(err))}
	}
	advice, err := rule.EvaluateAdvice(ctx, effect, ps.AdviceExpressions)
	if err != nil {
		return EvaluationResult{Result: decision.IndeterminateResult(decision.ExtendedFor(effect), expr.StatusFromError(err))}
	}

	out := EvaluationResult{Result: combined, Obligations: obligations, Advice: advice, PolicyIdentifiers: []string{ps.ID}}
	for i := range ps.Children {
		if !rec.evaluated[i] || rec.results[i].Decision != combined.Decision {
			continue
		}
		out.Obligations = append(out.Obligations, rec.results[i].Obligations...)
		out.Advice = append(out.Advice, rec.results[i].Advice...)
		out.PolicyIdentifiers = append(out.PolicyIdentifiers, rec.results[i].PolicyIdentifiers...)
	}
	return out
}

func (r *decidableRecorder) combine(alg combining.Algorithm) decision.Result {
	return alg.Combine(r.asChildren())
}

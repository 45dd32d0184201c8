// Package policy implements the Policy and PolicySet Decidables: the tree
// nodes above Rule that apply a combining algorithm to their children and
// filter obligation/advice expressions onto the combined decision
// (spec.md §4.G).
package policy

import (
	"github.com/lattice-abac/pdp/internal/domain/combining"
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/response"
	"github.com/lattice-abac/pdp/internal/domain/rule"
	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/target"
)

// Decidable is anything the PolicySet tree can combine: a Policy or a
// nested PolicySet. Rule does not implement Decidable directly (it lives
// one level lower, combined only inside a Policy) but satisfies the same
// shape conceptually.
type Decidable interface {
	GetID() string
	EvaluateTarget(ctx expr.Context) (bool, *expr.Indeterminate)
	Evaluate(ctx expr.Context) EvaluationResult
}

// EvaluationResult is a decision.Result plus the obligation/advice
// assignments that survived FulfillOn/AppliesTo filtering against the
// final Decision, already evaluated against the ctx this Decidable was
// run with.
type EvaluationResult struct {
	decision.Result
	Obligations       []response.Obligation
	Advice            []response.Advice
	PolicyIdentifiers []string
}

// Policy combines a list of Rules under a single rule-combining algorithm.
type Policy struct {
	ID                  string
	Target              target.Target
	CombiningAlgorithm  combining.Algorithm
	Rules               []rule.Rule
	ObligationExpressions []rule.ObligationExpression
	AdviceExpressions    []rule.AdviceExpression
	VariableDefinitions  map[string]expr.Expression
}

func (p *Policy) GetID() string { return p.ID }

func (p *Policy) EvaluateTarget(ctx expr.Context) (bool, *expr.Indeterminate) {
	return p.Target.Evaluate(ctx)
}

// ruleRecorder evaluates each Rule against ctx at most once, remembering
// the full rule.Result (decision plus already-evaluated obligations/advice)
// so obligation/advice collection after combining doesn't re-run (and
// potentially re-fail) rule evaluation.
type ruleRecorder struct {
	rules     []rule.Rule
	ctx       expr.Context
	results   []rule.Result
	evaluated []bool
}

func newRuleRecorder(rules []rule.Rule, ctx expr.Context) *ruleRecorder {
	return &ruleRecorder{rules: rules, ctx: ctx, results: make([]rule.Result, len(rules)), evaluated: make([]bool, len(rules))}
}

func (r *ruleRecorder) children() []combining.Child {
	out := make([]combining.Child, len(r.rules))
	for i := range r.rules {
		out[i] = &ruleChild{rec: r, idx: i}
	}
	return out
}

type ruleChild struct {
	rec *ruleRecorder
	idx int
}

func (c *ruleChild) Matches() (bool, *expr.Indeterminate) {
	return c.rec.rules[c.idx].Target.Evaluate(c.rec.ctx)
}

func (c *ruleChild) Evaluate() decision.Result {
	res := c.rec.rules[c.idx].Evaluate(c.rec.ctx)
	c.rec.results[c.idx] = res
	c.rec.evaluated[c.idx] = true
	return res.Result
}

// Evaluate implements spec.md §4.G: Target mismatch or Target-evaluation
// failure short-circuits before any Rule runs; otherwise the rule
// combining algorithm decides, and surviving obligations/advice are
// collected from both the Policy itself and from the Rules whose own
// Decision equals the final combined Decision. An Indeterminate
// attribute-assignment expression anywhere in that collection turns the
// whole Policy's decision into Indeterminate (spec.md §4.G step 4), rather
// than being silently dropped.
func (p *Policy) Evaluate(ctx expr.Context) EvaluationResult {
	matched, ind := p.Target.Evaluate(ctx)
	if ind != nil {
		return EvaluationResult{Result: decision.IndeterminateResult(status.ExtendedDP, ind.Status)}
	}
	if !matched {
		return EvaluationResult{Result: decision.NotApplicableResult()}
	}

	if scope, ok := ctx.(expr.VariableScope); ok && len(p.VariableDefinitions) > 0 {
		pop := scope.PushVariables(p.VariableDefinitions)
		defer pop()
	}

	rec := newRuleRecorder(p.Rules, ctx)
	combined := p.CombiningAlgorithm.Combine(rec.children())

	if combined.Decision != decision.DecisionPermit && combined.Decision != decision.DecisionDeny {
		return EvaluationResult{Result: combined}
	}
	effect := decision.Effect(combined.Decision)

	obligations, err := rule.EvaluateObligations(ctx, effect, p.ObligationExpressions)
	if err != nil {
		return EvaluationResult{Result: decision.IndeterminateResult(decision.ExtendedFor(effect), expr.StatusFromError(err))}
	}
	advice, err := rule.EvaluateAdvice(ctx, effect, p.AdviceExpressions)
	if err != nil {
		return EvaluationResult{Result: decision.IndeterminateResult(decision.ExtendedFor(effect), expr.StatusFromError(err))}
	}

	out := EvaluationResult{Result: combined, Obligations: obligations, Advice: advice, PolicyIdentifiers: []string{p.ID}}
	for i := range p.Rules {
		if !rec.evaluated[i] || rec.results[i].Decision != combined.Decision {
			continue
		}
		out.Obligations = append(out.Obligations, rec.results[i].Obligations...)
		out.Advice = append(out.Advice, rec.results[i].Advice...)
	}
	return out
}

package combining

import (
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/status"
)

// denyUnlessPermit (Appendix C.5/C.12) never produces NotApplicable or
// Indeterminate: it resolves to Permit as soon as any child permits, and
// Deny otherwise, absorbing every other outcome including Indeterminate
// and NotApplicable children.
type denyUnlessPermit struct{ id string }

func (a denyUnlessPermit) ID() string { return a.id }

func (a denyUnlessPermit) Combine(children []Child) decision.Result {
	for _, c := range children {
		if c.Evaluate().Decision == decision.DecisionPermit {
			return decision.PermitResult()
		}
	}
	return decision.DenyResult()
}

// permitUnlessDeny (Appendix C.6/C.13) is the symmetric counterpart:
// resolves to Deny as soon as any child denies, Permit otherwise.
type permitUnlessDeny struct{ id string }

func (a permitUnlessDeny) ID() string { return a.id }

func (a permitUnlessDeny) Combine(children []Child) decision.Result {
	for _, c := range children {
		if c.Evaluate().Decision == decision.DecisionDeny {
			return decision.DenyResult()
		}
	}
	return decision.PermitResult()
}

// firstApplicable (Appendix C.1/C.8) returns the first child's result that
// is not NotApplicable, preserving whatever Decision (including
// Indeterminate) that child produced.
type firstApplicable struct{ id string }

func (a firstApplicable) ID() string { return a.id }

func (a firstApplicable) Combine(children []Child) decision.Result {
	for _, c := range children {
		if r := c.Evaluate(); r.Decision != decision.DecisionNotApplicable {
			return r
		}
	}
	return decision.NotApplicableResult()
}

// onlyOneApplicable (Appendix C.7, policy-combining only) requires that at
// most one child's Target match the request; more than one is an
// authoring error surfaced as Indeterminate, zero is NotApplicable, and
// exactly one defers to that child's own evaluation.
type onlyOneApplicable struct{ id string }

func (a onlyOneApplicable) ID() string { return a.id }

func (a onlyOneApplicable) Combine(children []Child) decision.Result {
	var winner Child
	matchCount := 0
	for _, c := range children {
		matches, ind := c.Matches()
		if ind != nil {
			return decision.IndeterminateResult(status.ExtendedDP, ind.Status)
		}
		if matches {
			matchCount++
			winner = c
		}
	}
	switch {
	case matchCount == 0:
		return decision.NotApplicableResult()
	case matchCount > 1:
		return decision.IndeterminateResult(status.ExtendedDP, status.New(status.ProcessingError, "only-one-applicable: more than one child's target matched the request"))
	default:
		return winner.Evaluate()
	}
}

// onPermitApplySecond (a XACML 3.0 policy-combining algorithm, Appendix
// C.14) is defined for exactly two children: if the first evaluates to
// Permit, the combined result is the second child's result; otherwise the
// first child's result is returned unchanged.
type onPermitApplySecond struct{ id string }

func (a onPermitApplySecond) ID() string { return a.id }

func (a onPermitApplySecond) Combine(children []Child) decision.Result {
	if len(children) == 0 {
		return decision.NotApplicableResult()
	}
	first := children[0].Evaluate()
	if first.Decision != decision.DecisionPermit || len(children) < 2 {
		return first
	}
	return children[1].Evaluate()
}

package combining

import (
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/status"
)

// denyOverrides implements the XACML 3.0 deny-overrides algorithm
// (Appendix C.2/C.9): a Deny from any child wins outright; otherwise the
// Extended Indeterminate annotations of failed children are combined with
// any Permit seen to decide between Permit, Indeterminate{D},
// Indeterminate{P}, or Indeterminate{DP}.
type denyOverrides struct{ id string }

func (a denyOverrides) ID() string { return a.id }

func (a denyOverrides) Combine(children []Child) decision.Result {
	var errD, errP, errDP, sawPermit bool
	for _, c := range children {
		r := c.Evaluate()
		switch r.Decision {
		case decision.DecisionDeny:
			return decision.DenyResult()
		case decision.DecisionPermit:
			sawPermit = true
		case decision.DecisionNotApplicable:
		case decision.DecisionIndeterminate:
			switch r.Extended {
			case status.ExtendedD:
				errD = true
			case status.ExtendedP:
				errP = true
			default:
				errDP = true
			}
		}
	}
	switch {
	case errDP:
		return decision.IndeterminateResult(status.ExtendedDP, status.New(status.ProcessingError, "deny-overrides: indeterminate child could have been either effect"))
	case errD && (errP || sawPermit):
		return decision.IndeterminateResult(status.ExtendedDP, status.New(status.ProcessingError, "deny-overrides: indeterminate-deny alongside a permit or indeterminate-permit"))
	case errD:
		return decision.IndeterminateResult(status.ExtendedD, status.New(status.ProcessingError, "deny-overrides: indeterminate child could only have been deny"))
	case sawPermit:
		return decision.PermitResult()
	case errP:
		return decision.IndeterminateResult(status.ExtendedP, status.New(status.ProcessingError, "deny-overrides: indeterminate child could only have been permit"))
	default:
		return decision.NotApplicableResult()
	}
}

// permitOverrides implements the XACML 3.0 permit-overrides algorithm
// (Appendix C.3/C.10), symmetric to denyOverrides except that an
// Indeterminate{D} child outranks a plain Deny: {Indeterminate{D}, Deny}
// combines to Indeterminate{D}.
type permitOverrides struct{ id string }

func (a permitOverrides) ID() string { return a.id }

func (a permitOverrides) Combine(children []Child) decision.Result {
	var errD, errP, errDP, sawDeny bool
	for _, c := range children {
		r := c.Evaluate()
		switch r.Decision {
		case decision.DecisionPermit:
			return decision.PermitResult()
		case decision.DecisionDeny:
			sawDeny = true
		case decision.DecisionNotApplicable:
		case decision.DecisionIndeterminate:
			switch r.Extended {
			case status.ExtendedD:
				errD = true
			case status.ExtendedP:
				errP = true
			default:
				errDP = true
			}
		}
	}
	switch {
	case errDP:
		return decision.IndeterminateResult(status.ExtendedDP, status.New(status.ProcessingError, "permit-overrides: indeterminate child could have been either effect"))
	case errP && (errD || sawDeny):
		return decision.IndeterminateResult(status.ExtendedDP, status.New(status.ProcessingError, "permit-overrides: indeterminate-permit alongside a deny or indeterminate-deny"))
	case errP:
		return decision.IndeterminateResult(status.ExtendedP, status.New(status.ProcessingError, "permit-overrides: indeterminate child could only have been permit"))
	case errD:
		return decision.IndeterminateResult(status.ExtendedD, status.New(status.ProcessingError, "permit-overrides: indeterminate child could only have been deny"))
	case sawDeny:
		return decision.DenyResult()
	default:
		return decision.NotApplicableResult()
	}
}

// legacyDenyOverrides implements the pre-3.0 (XACML 1.0/1.1) deny-overrides
// algorithm, which predates the Extended Indeterminate {D,P,DP}
// distinction: any Indeterminate child not itself resolved to Deny makes
// the whole combination Indeterminate{DP}.
type legacyDenyOverrides struct{ id string }

func (a legacyDenyOverrides) ID() string { return a.id }

func (a legacyDenyOverrides) Combine(children []Child) decision.Result {
	sawError := false
	sawPermit := false
	for _, c := range children {
		r := c.Evaluate()
		switch r.Decision {
		case decision.DecisionDeny:
			return decision.DenyResult()
		case decision.DecisionPermit:
			sawPermit = true
		case decision.DecisionIndeterminate:
			sawError = true
		}
	}
	if sawError {
		return decision.IndeterminateResult(status.ExtendedDP, status.New(status.ProcessingError, "legacy deny-overrides: indeterminate child present"))
	}
	if sawPermit {
		return decision.PermitResult()
	}
	return decision.NotApplicableResult()
}

// legacyPermitOverrides is the pre-3.0 permit-overrides counterpart.
type legacyPermitOverrides struct{ id string }

func (a legacyPermitOverrides) ID() string { return a.id }

func (a legacyPermitOverrides) Combine(children []Child) decision.Result {
	sawError := false
	sawDeny := false
	for _, c := range children {
		r := c.Evaluate()
		switch r.Decision {
		case decision.DecisionPermit:
			return decision.PermitResult()
		case decision.DecisionDeny:
			sawDeny = true
		case decision.DecisionIndeterminate:
			sawError = true
		}
	}
	if sawError {
		return decision.IndeterminateResult(status.ExtendedDP, status.New(status.ProcessingError, "legacy permit-overrides: indeterminate child present"))
	}
	if sawDeny {
		return decision.DenyResult()
	}
	return decision.NotApplicableResult()
}

// Package combining implements the eleven standard XACML 3.0 rule- and
// policy-combining algorithms, applied to both Rules inside a Policy and
// Policies/PolicySets inside a PolicySet (spec.md §4.F, Appendix C).
package combining

import (
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/expr"
)

// Child is anything a combining algorithm can combine: a Rule, or a nested
// Policy/PolicySet. Matches is distinct from Evaluate because
// only-one-applicable must decide how many children are applicable
// (Target match) without first running their full combining logic.
type Child interface {
	Matches() (bool, *expr.Indeterminate)
	Evaluate() decision.Result
}

// Algorithm combines an ordered list of Child decisions into one Result.
type Algorithm interface {
	ID() string
	Combine(children []Child) decision.Result
}

const ns3 = "urn:oasis:names:tc:xacml:3.0:rule-combining-algorithm:"
const nsPolicy3 = "urn:oasis:names:tc:xacml:3.0:policy-combining-algorithm:"
const ns1 = "urn:oasis:names:tc:xacml:1.0:rule-combining-algorithm:"
const nsPolicy1 = "urn:oasis:names:tc:xacml:1.0:policy-combining-algorithm:"

// ByID returns the standard algorithm registered under a rule- or
// policy-combining-algorithm URN understood by this PDP.
func ByID(id string) (Algorithm, bool) {
	for _, a := range all {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

var all = []Algorithm{
	denyOverrides{id: ns3 + "deny-overrides"},
	denyOverrides{id: ns3 + "ordered-deny-overrides"},
	denyOverrides{id: nsPolicy3 + "deny-overrides"},
	denyOverrides{id: nsPolicy3 + "ordered-deny-overrides"},
	legacyDenyOverrides{id: ns1 + "deny-overrides"},
	legacyDenyOverrides{id: nsPolicy1 + "deny-overrides"},

	permitOverrides{id: ns3 + "permit-overrides"},
	permitOverrides{id: ns3 + "ordered-permit-overrides"},
	permitOverrides{id: nsPolicy3 + "permit-overrides"},
	permitOverrides{id: nsPolicy3 + "ordered-permit-overrides"},
	legacyPermitOverrides{id: ns1 + "permit-overrides"},
	legacyPermitOverrides{id: nsPolicy1 + "permit-overrides"},

	denyUnlessPermit{id: ns3 + "deny-unless-permit"},
	denyUnlessPermit{id: nsPolicy3 + "deny-unless-permit"},
	permitUnlessDeny{id: ns3 + "permit-unless-deny"},
	permitUnlessDeny{id: nsPolicy3 + "permit-unless-deny"},

	firstApplicable{id: ns1 + "first-applicable"},
	firstApplicable{id: nsPolicy1 + "first-applicable"},

	onlyOneApplicable{id: nsPolicy1 + "only-one-applicable"},

	onPermitApplySecond{id: nsPolicy3 + "on-permit-apply-second"},
}

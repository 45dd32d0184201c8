// Package decision defines the four-valued XACML decision result shared by
// Rule, Policy, PolicySet, and combining-algorithm evaluation (spec.md §3,
// §4.D-F).
package decision

import "github.com/lattice-abac/pdp/internal/domain/status"

// Effect is the decision a Rule produces when it applies.
type Effect string

const (
	Permit Effect = "Permit"
	Deny   Effect = "Deny"
)

// Decision is the outcome of evaluating a Rule, Policy, or PolicySet.
type Decision string

const (
	DecisionPermit        Decision = "Permit"
	DecisionDeny          Decision = "Deny"
	DecisionNotApplicable Decision = "NotApplicable"
	DecisionIndeterminate Decision = "Indeterminate"
)

// Result is the full outcome of a Decidable's evaluation: the Decision
// itself, the Extended Indeterminate annotation (meaningful only when
// Decision == Indeterminate), and a Status explaining an Indeterminate
// result. Obligations/advice are not carried here; the policy layer
// collects them alongside the Result.
type Result struct {
	Decision Decision
	Extended status.Extended
	Status   status.Status
}

// Permit, Deny, and NotApplicable construct definite Results.
func PermitResult() Result        { return Result{Decision: DecisionPermit} }
func DenyResult() Result          { return Result{Decision: DecisionDeny} }
func NotApplicableResult() Result { return Result{Decision: DecisionNotApplicable} }

// IndeterminateResult builds an Indeterminate Result with the given
// Extended annotation and Status.
func IndeterminateResult(ext status.Extended, st status.Status) Result {
	return Result{Decision: DecisionIndeterminate, Extended: ext, Status: st}
}

// ExtendedFor computes the Extended Indeterminate annotation an
// Indeterminate Rule/Policy/PolicySet carries, based on the Effect it would
// have produced had it not failed (spec.md Glossary, §7).
func ExtendedFor(effect Effect) status.Extended {
	if effect == Permit {
		return status.ExtendedP
	}
	return status.ExtendedD
}

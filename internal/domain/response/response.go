// Package response defines the PDP's outward-facing Result/Response shape:
// a decision.Result enriched with evaluated obligation/advice attribute
// assignments and (when requested) the applicable PolicyIdentifierList
// (spec.md §4.K, §6).
package response

import (
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// AttributeAssignment is one resolved (AttributeId, Category, Value) triple
// contributed by an obligation or advice expression. Unlike
// rule.AttributeAssignment (which carries the unevaluated expression), this
// is the concrete value the PEP receives — a bag-valued assignment
// expression expands into one AttributeAssignment per bag member, per
// XACML 3.0 §5.36.
type AttributeAssignment struct {
	AttributeID string
	Category    string
	Value       value.AttributeValue
}

// Obligation and Advice are the evaluated counterparts of
// rule.ObligationExpression/AdviceExpression: FulfillOn/AppliesTo have
// already been checked against the final Decision by the time one of these
// appears on a Result.
type Obligation struct {
	ID          string
	Assignments []AttributeAssignment
}

type Advice struct {
	ID          string
	Assignments []AttributeAssignment
}

// Result is one individual decision result, matching the XACML <Result>
// element: a Decision, Status, obligations, advice, and (if
// ReturnPolicyIdList was set) the ids of the policies that contributed to
// it.
type Result struct {
	decision.Result
	Obligations       []Obligation
	Advice            []Advice
	PolicyIdentifiers []string
	Category          string // PDPEngine.Evaluate leaves it empty, fan-out results included
}

// Response is the PDP's full answer to one evaluate() call: one Result per
// IndividualDecisionRequest the preprocessor produced, unless the
// CombinedDecision post-processor folded them into one.
type Response struct {
	Results []Result
}

// Single builds a one-Result Response, the common case for a request that
// did not fan out.
func Single(r Result) Response { return Response{Results: []Result{r}} }

// IndeterminateResponse builds a single-Result Response reporting a
// top-level processing failure (spec.md §4.K step 1: "Invalid ⇒ Response
// with single Indeterminate Result").
func IndeterminateResponse(r decision.Result) Response {
	return Single(Result{Result: r})
}

// Package request implements the request preprocessor: splitting an
// abstract Request into one or more IndividualDecisionRequests, including
// the Multiple-Decision repeated-attribute-categories Cartesian fan-out
// (spec.md §4.J).
package request

import (
	"fmt"

	"github.com/lattice-abac/pdp/internal/domain/value"
)

// Attribute is one named, typed, possibly multi-valued attribute as it
// arrives on the wire (already decoded from XML/JSON by an outside
// adapter; spec.md §6 places wire parsing out of this core's scope).
type Attribute struct {
	FQN             value.AttributeFqn
	Values          []value.AttributeValue
	IncludeInResult bool
}

// Category is one repeatable `<Attributes>` block: a category name plus
// the Attribute list it carries, and optional structured Content for
// AttributeSelector evaluation.
type Category struct {
	Category string
	ID       string
	Content  any // opaque; passed through to evalctx.Content construction
	Attrs    []Attribute
}

// Request is the abstract shape spec.md §6 describes: a flat list of
// Category blocks (a category may repeat — the Multiple-Decision case),
// plus the two result-shaping flags.
type Request struct {
	ReturnPolicyIDList bool
	CombinedDecision   bool
	Categories         []Category
}

// IndividualDecisionRequest is one fully-resolved combination of
// categories: each category name appears exactly once.
type IndividualDecisionRequest struct {
	ReturnPolicyIDList bool
	CombinedDecision   bool
	Categories         map[string]Category
}

// Capabilities describes what the embedding PDP actually supports,
// gating the two request flags per spec.md §4.J.
type Capabilities struct {
	TracksApplicablePolicies bool
	SupportsCombinedDecision bool
}

// Preprocess splits req into one or more IndividualDecisionRequests.
// MultiRequests/RequestReference aren't part of this abstract Request
// shape (they are explicitly rejected at the wire-parsing layer outside
// this core per spec.md §6) — Preprocess itself only has to handle the
// repeated-category Cartesian product.
func Preprocess(req Request, caps Capabilities) ([]IndividualDecisionRequest, error) {
	if req.ReturnPolicyIDList && !caps.TracksApplicablePolicies {
		return nil, fmt.Errorf("request: ReturnPolicyIdList requested but this engine does not track applicable policy identifiers")
	}
	if req.CombinedDecision && !caps.SupportsCombinedDecision {
		return nil, fmt.Errorf("request: CombinedDecision requested but no result post-processor supports combining")
	}

	grouped := make(map[string][]Category)
	var order []string
	for _, c := range req.Categories {
		if _, seen := grouped[c.Category]; !seen {
			order = append(order, c.Category)
		}
		grouped[c.Category] = append(grouped[c.Category], c)
	}

	combos := [][]Category{{}}
	for _, cat := range order {
		variants := grouped[cat]
		next := make([][]Category, 0, len(combos)*len(variants))
		for _, combo := range combos {
			for _, v := range variants {
				extended := make([]Category, len(combo), len(combo)+1)
				copy(extended, combo)
				extended = append(extended, v)
				next = append(next, extended)
			}
		}
		combos = next
	}

	out := make([]IndividualDecisionRequest, 0, len(combos))
	for _, combo := range combos {
		byCategory := make(map[string]Category, len(combo))
		for _, c := range combo {
			byCategory[c.Category] = c
		}
		out = append(out, IndividualDecisionRequest{
			ReturnPolicyIDList: req.ReturnPolicyIDList,
			CombinedDecision:   req.CombinedDecision,
			Categories:         byCategory,
		})
	}
	return out, nil
}

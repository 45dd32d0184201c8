// Package target implements Target matching: the AnyOf(AllOf(Match))
// structure that decides whether a Rule, Policy, or PolicySet is
// applicable to a request, with the Indeterminate-skipping propagation
// rules of XACML 3.0 §7.11 (spec.md §4.C).
package target

import (
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/status"
)

// outcome is the three-valued result of matching one level of the Target
// tree: true, false, or indeterminate (carrying the failure that produced it).
type outcome struct {
	value         bool
	indeterminate bool
	cause         *expr.Indeterminate
}

func trueOutcome() outcome  { return outcome{value: true} }
func falseOutcome() outcome { return outcome{value: false} }
func indeterminateOutcome(ind *expr.Indeterminate) outcome {
	return outcome{indeterminate: true, cause: ind}
}

// Match pairs a match function with a literal value and the
// designator/selector expression it is matched against. The match function
// is invoked once per value the designator/selector's bag yields, per
// spec.md §4.C ("OR over bag").
type Match struct {
	Fn      expr.Function
	Literal expr.Expression
	Input   expr.Expression // AttributeDesignator or AttributeSelector, always bag-valued
}

func (m Match) evaluate(ctx expr.Context) outcome {
	bagRes, err := m.Input.Evaluate(ctx)
	if err != nil {
		if ind, ok := expr.AsIndeterminate(err); ok {
			return indeterminateOutcome(ind)
		}
		return indeterminateOutcome(expr.NewIndeterminate(status.ProcessingError, err.Error()))
	}
	sawIndeterminate := false
	for _, v := range bagRes.Bag.Values {
		r, err := m.Fn.Call(ctx, []expr.Expression{m.Literal, &expr.Literal{V: v}})
		if err != nil {
			sawIndeterminate = true
			continue
		}
		if b, ok := r.Value.Raw().(bool); ok && b {
			return trueOutcome()
		}
	}
	if sawIndeterminate {
		return indeterminateOutcome(expr.NewIndeterminate(status.ProcessingError, "match: indeterminate comparison in bag, no match found"))
	}
	return falseOutcome()
}

// AllOf is a conjunction of Matches.
type AllOf struct {
	Matches []Match
}

func (a AllOf) evaluate(ctx expr.Context) outcome {
	return conjunction(func(i int) outcome { return a.Matches[i].evaluate(ctx) }, len(a.Matches))
}

// AnyOf is a disjunction of AllOfs.
type AnyOf struct {
	AllOfs []AllOf
}

func (a AnyOf) evaluate(ctx expr.Context) outcome {
	return disjunction(func(i int) outcome { return a.AllOfs[i].evaluate(ctx) }, len(a.AllOfs))
}

// Target is a conjunction of AnyOfs. An empty or absent Target matches
// everything (spec.md §4.C).
type Target struct {
	AnyOfs []AnyOf
}

// Nil reports whether the Target has no AnyOf elements and therefore
// matches unconditionally.
func (t Target) Nil() bool { return len(t.AnyOfs) == 0 }

// Evaluate returns (true, nil) on match, (false, nil) on no-match, and
// (false, ind) when the outcome is Indeterminate.
func (t Target) Evaluate(ctx expr.Context) (bool, *expr.Indeterminate) {
	if t.Nil() {
		return true, nil
	}
	o := conjunction(func(i int) outcome { return t.AnyOfs[i].evaluate(ctx) }, len(t.AnyOfs))
	if o.indeterminate {
		return false, o.cause
	}
	return o.value, nil
}

// conjunction implements the AND-with-indeterminate-skipping rule common to
// Target and AllOf: any false child makes the whole thing false regardless
// of other indeterminate children; otherwise indeterminate iff any child
// was indeterminate; otherwise true.
func conjunction(child func(i int) outcome, n int) outcome {
	sawIndeterminate := false
	var cause *expr.Indeterminate
	for i := 0; i < n; i++ {
		o := child(i)
		if !o.indeterminate && !o.value {
			return falseOutcome()
		}
		if o.indeterminate {
			sawIndeterminate = true
			cause = o.cause
		}
	}
	if sawIndeterminate {
		return indeterminateOutcome(cause)
	}
	return trueOutcome()
}

// disjunction implements the OR-with-indeterminate-skipping rule common to
// AnyOf and Match-over-bag: any true child makes the whole thing true
// regardless of other indeterminate children; otherwise indeterminate iff
// any child was indeterminate; otherwise false.
func disjunction(child func(i int) outcome, n int) outcome {
	sawIndeterminate := false
	var cause *expr.Indeterminate
	for i := 0; i < n; i++ {
		o := child(i)
		if !o.indeterminate && o.value {
			return trueOutcome()
		}
		if o.indeterminate {
			sawIndeterminate = true
			cause = o.cause
		}
	}
	if sawIndeterminate {
		return indeterminateOutcome(cause)
	}
	return falseOutcome()
}

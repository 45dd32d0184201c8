// Package function implements the standard XACML function library: the
// boolean, equality, comparison, arithmetic, string, bag, and higher-order
// functions Apply nodes invoke (spec.md §4.B). Every function in this
// package registers itself into expr.Global during init() so the policy
// loader can resolve <Apply FunctionId="..."> by URN.
package function

import (
	"fmt"

	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

func boolResult(b bool) expr.Result {
	return expr.Single(value.New(value.TypeBoolean, b))
}

func boolOf(r expr.Result) (bool, bool) {
	if r.IsBag {
		return false, false
	}
	b, ok := r.Value.Raw().(bool)
	return b, ok
}

func indeterminate(format string, args ...any) (expr.Result, error) {
	return expr.Result{}, expr.NewIndeterminate(status.ProcessingError, fmt.Sprintf(format, args...))
}

package function

import (
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// orFn implements urn:oasis:names:tc:xacml:1.0:function:or: short-circuits
// true on the first true argument; Indeterminate only if no true was seen
// and at least one argument was Indeterminate.
type orFn struct{}

func (orFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:or" }
func (orFn) Signature() expr.Signature {
	return expr.Signature{
		Params:   []expr.Param{{Kind: expr.ParamValue, Type: value.TypeBoolean}},
		Variadic: true,
		Return:   value.TypeBoolean,
	}
}

func (orFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	sawIndeterminate := false
	for _, a := range args {
		r, err := a.Evaluate(ctx)
		if err != nil {
			sawIndeterminate = true
			continue
		}
		if b, ok := boolOf(r); ok && b {
			return boolResult(true), nil
		}
	}
	if sawIndeterminate {
		return indeterminate("or: no argument was true and at least one was indeterminate")
	}
	return boolResult(false), nil
}

// andFn implements urn:oasis:names:tc:xacml:1.0:function:and, symmetric to or.
type andFn struct{}

func (andFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:and" }
func (andFn) Signature() expr.Signature {
	return expr.Signature{
		Params:   []expr.Param{{Kind: expr.ParamValue, Type: value.TypeBoolean}},
		Variadic: true,
		Return:   value.TypeBoolean,
	}
}

func (andFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	sawIndeterminate := false
	for _, a := range args {
		r, err := a.Evaluate(ctx)
		if err != nil {
			sawIndeterminate = true
			continue
		}
		if b, ok := boolOf(r); ok && !b {
			return boolResult(false), nil
		}
	}
	if sawIndeterminate {
		return indeterminate("and: no argument was false and at least one was indeterminate")
	}
	return boolResult(true), nil
}

// notFn implements urn:oasis:names:tc:xacml:1.0:function:not.
type notFn struct{}

func (notFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:not" }
func (notFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamValue, Type: value.TypeBoolean}},
		Return: value.TypeBoolean,
	}
}

func (notFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	r, err := args[0].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	b, ok := boolOf(r)
	if !ok {
		return indeterminate("not: argument is not a boolean")
	}
	return boolResult(!b), nil
}

// nOfFn implements urn:oasis:names:tc:xacml:1.0:function:n-of: true once n
// true arguments have been seen; false once it becomes impossible to reach
// n even if every unevaluated and every Indeterminate argument turned out
// true; Indeterminate only when the outcome still depends on an argument
// that was Indeterminate.
type nOfFn struct{}

func (nOfFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:n-of" }
func (nOfFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: value.TypeInteger},
			{Kind: expr.ParamValue, Type: value.TypeBoolean},
		},
		Variadic: true,
		Return:   value.TypeBoolean,
	}
}

func (nOfFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	nRes, err := args[0].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	n, ok := nRes.Value.Raw().(int64)
	if !ok {
		return indeterminate("n-of: first argument is not an integer")
	}

	rest := args[1:]
	trueCount := int64(0)
	indeterminateCount := int64(0)
	remaining := int64(len(rest))
	for _, a := range rest {
		remaining--
		r, err := a.Evaluate(ctx)
		if err != nil {
			indeterminateCount++
		} else if b, ok := boolOf(r); ok && b {
			trueCount++
			if trueCount >= n {
				return boolResult(true), nil
			}
		}
		// False is certain only once n stays out of reach even if every
		// Indeterminate argument and every remaining one were true.
		if trueCount+indeterminateCount+remaining < n {
			return boolResult(false), nil
		}
	}
	if indeterminateCount > 0 {
		return indeterminate("n-of: outcome depends on an indeterminate argument")
	}
	return boolResult(false), nil
}

func init() {
	expr.Global.Register(orFn{})
	expr.Global.Register(andFn{})
	expr.Global.Register(notFn{})
	expr.Global.Register(nOfFn{})
}

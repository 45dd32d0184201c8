package function

import (
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// funcRefArg resolves args[0], which higher-order functions require to be a
// literal *expr.FunctionRef (never an evaluated expression).
func funcRefArg(args []expr.Expression) (expr.Function, bool) {
	ref, ok := args[0].(*expr.FunctionRef)
	if !ok {
		return nil, false
	}
	return ref.Fn, true
}

func applyPredicate(ctx expr.Context, fn expr.Function, a, b value.AttributeValue) (bool, bool, error) {
	res, err := fn.Call(ctx, []expr.Expression{&expr.Literal{V: a}, &expr.Literal{V: b}})
	if err != nil {
		return false, false, err
	}
	boolVal, ok := boolOf(res)
	return boolVal, ok, nil
}

// anyOfFn implements urn:oasis:names:tc:xacml:3.0:function:any-of: true if
// F(value, x) is true for at least one x in bag.
type anyOfFn struct{}

func (anyOfFn) ID() string { return "urn:oasis:names:tc:xacml:3.0:function:any-of" }
func (anyOfFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamFunction}, {Kind: expr.ParamValue}, {Kind: expr.ParamBag}},
		Return: value.TypeBoolean,
	}
}

func (anyOfFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	fn, ok := funcRefArg(args)
	if !ok {
		return indeterminate("any-of: first argument must be a function reference")
	}
	valRes, err := args[1].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	bagRes, err := args[2].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	sawIndeterminate := false
	for _, x := range bagRes.Bag.Values {
		b, ok, err := applyPredicate(ctx, fn, valRes.Value, x)
		if err != nil {
			sawIndeterminate = true
			continue
		}
		if ok && b {
			return boolResult(true), nil
		}
	}
	if sawIndeterminate {
		return indeterminate("any-of: no match found and at least one comparison was indeterminate")
	}
	return boolResult(false), nil
}

// allOfFn implements urn:oasis:names:tc:xacml:3.0:function:all-of.
type allOfFn struct{}

func (allOfFn) ID() string { return "urn:oasis:names:tc:xacml:3.0:function:all-of" }
func (allOfFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamFunction}, {Kind: expr.ParamValue}, {Kind: expr.ParamBag}},
		Return: value.TypeBoolean,
	}
}

func (allOfFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	fn, ok := funcRefArg(args)
	if !ok {
		return indeterminate("all-of: first argument must be a function reference")
	}
	valRes, err := args[1].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	bagRes, err := args[2].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	sawIndeterminate := false
	for _, x := range bagRes.Bag.Values {
		b, ok, err := applyPredicate(ctx, fn, valRes.Value, x)
		if err != nil {
			sawIndeterminate = true
			continue
		}
		if !ok || !b {
			return boolResult(false), nil
		}
	}
	if sawIndeterminate {
		return indeterminate("all-of: outcome depends on an indeterminate comparison")
	}
	return boolResult(true), nil
}

type crossQuantifier int

const (
	quantAnyAny crossQuantifier = iota
	quantAllAny
	quantAnyAll
	quantAllAll
)

// crossBagFn implements the any-of-any / all-of-any / any-of-all / all-of-all
// family: F invoked pairwise over the cross product of two bags.
type crossBagFn struct {
	id string
	q  crossQuantifier
}

func (f crossBagFn) ID() string { return f.id }
func (f crossBagFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamFunction}, {Kind: expr.ParamBag}, {Kind: expr.ParamBag}},
		Return: value.TypeBoolean,
	}
}

func (f crossBagFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	fn, ok := funcRefArg(args)
	if !ok {
		return indeterminate("%s: first argument must be a function reference", f.id)
	}
	aRes, err := args[1].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	bRes, err := args[2].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}

	switch f.q {
	case quantAnyAny:
		sawIndeterminate := false
		for _, x := range aRes.Bag.Values {
			for _, y := range bRes.Bag.Values {
				b, ok, err := applyPredicate(ctx, fn, x, y)
				if err != nil {
					sawIndeterminate = true
					continue
				}
				if ok && b {
					return boolResult(true), nil
				}
			}
		}
		if sawIndeterminate {
			return indeterminate("%s: no match found and at least one comparison was indeterminate", f.id)
		}
		return boolResult(false), nil

	case quantAllAny:
		for _, x := range aRes.Bag.Values {
			found := false
			sawIndeterminate := false
			for _, y := range bRes.Bag.Values {
				b, ok, err := applyPredicate(ctx, fn, x, y)
				if err != nil {
					sawIndeterminate = true
					continue
				}
				if ok && b {
					found = true
					break
				}
			}
			if !found {
				if sawIndeterminate {
					return indeterminate("%s: outcome depends on an indeterminate comparison", f.id)
				}
				return boolResult(false), nil
			}
		}
		return boolResult(true), nil

	case quantAnyAll:
		sawIndeterminate := false
		for _, x := range aRes.Bag.Values {
			all := true
			for _, y := range bRes.Bag.Values {
				b, ok, err := applyPredicate(ctx, fn, x, y)
				if err != nil {
					sawIndeterminate = true
					all = false
					break
				}
				if !ok || !b {
					all = false
					break
				}
			}
			if all {
				return boolResult(true), nil
			}
		}
		if sawIndeterminate {
			return indeterminate("%s: no element satisfied all comparisons and at least one was indeterminate", f.id)
		}
		return boolResult(false), nil

	default: // quantAllAll
		sawIndeterminate := false
		for _, x := range aRes.Bag.Values {
			for _, y := range bRes.Bag.Values {
				b, ok, err := applyPredicate(ctx, fn, x, y)
				if err != nil {
					sawIndeterminate = true
					continue
				}
				if !ok || !b {
					return boolResult(false), nil
				}
			}
		}
		if sawIndeterminate {
			return indeterminate("%s: outcome depends on an indeterminate comparison", f.id)
		}
		return boolResult(true), nil
	}
}

// mapFn implements urn:oasis:names:tc:xacml:3.0:function:map: applies a
// unary sub-function to every element of a bag, producing a new bag of the
// sub-function's return type.
type mapFn struct{}

func (mapFn) ID() string { return "urn:oasis:names:tc:xacml:3.0:function:map" }
func (mapFn) Signature() expr.Signature {
	return expr.Signature{
		Params:     []expr.Param{{Kind: expr.ParamFunction}, {Kind: expr.ParamBag}},
		ReturnsBag: true,
	}
}

func (mapFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	fn, ok := funcRefArg(args)
	if !ok {
		return indeterminate("map: first argument must be a function reference")
	}
	bagRes, err := args[1].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	out := make([]value.AttributeValue, 0, len(bagRes.Bag.Values))
	returnType := fn.Signature().Return
	for _, x := range bagRes.Bag.Values {
		r, err := fn.Call(ctx, []expr.Expression{&expr.Literal{V: x}})
		if err != nil {
			return expr.Result{}, err
		}
		out = append(out, r.Value)
	}
	return expr.OfBag(value.NewBag(returnType, out...)), nil
}

func init() {
	expr.Global.Register(anyOfFn{})
	expr.Global.Register(allOfFn{})
	expr.Global.Register(crossBagFn{id: "urn:oasis:names:tc:xacml:1.0:function:any-of-any", q: quantAnyAny})
	expr.Global.Register(crossBagFn{id: "urn:oasis:names:tc:xacml:3.0:function:all-of-any", q: quantAllAny})
	expr.Global.Register(crossBagFn{id: "urn:oasis:names:tc:xacml:3.0:function:any-of-all", q: quantAnyAll})
	expr.Global.Register(crossBagFn{id: "urn:oasis:names:tc:xacml:1.0:function:all-of-all", q: quantAllAll})
	expr.Global.Register(mapFn{})
}

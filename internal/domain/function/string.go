package function

import (
	"strings"

	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// concatenateFn implements urn:oasis:names:tc:xacml:2.0:function:string-concatenate.
type concatenateFn struct{}

func (concatenateFn) ID() string {
	return "urn:oasis:names:tc:xacml:2.0:function:string-concatenate"
}
func (concatenateFn) Signature() expr.Signature {
	return expr.Signature{
		Params:   []expr.Param{{Kind: expr.ParamValue, Type: value.TypeString}},
		Variadic: true,
		Return:   value.TypeString,
	}
}

func (concatenateFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Value.Raw().(string))
	}
	return expr.Single(value.New(value.TypeString, b.String())), nil
}

type unaryStringFn struct {
	id string
	fn func(string) string
}

func (f unaryStringFn) ID() string { return f.id }
func (f unaryStringFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamValue, Type: value.TypeString}},
		Return: value.TypeString,
	}
}

func (f unaryStringFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	r, err := args[0].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	out := f.fn(r.Value.Raw().(string))
	return expr.Single(value.New(value.TypeString, out)), nil
}

type binaryStringPredicateFn struct {
	id string
	fn func(a, b string) bool
}

func (f binaryStringPredicateFn) ID() string { return f.id }
func (f binaryStringPredicateFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: value.TypeString},
			{Kind: expr.ParamValue, Type: value.TypeString},
		},
		Return: value.TypeBoolean,
	}
}

func (f binaryStringPredicateFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	return boolResult(f.fn(results[0].Value.Raw().(string), results[1].Value.Raw().(string))), nil
}

// substringFn implements urn:oasis:names:tc:xacml:3.0:function:string-substring.
type substringFn struct{}

func (substringFn) ID() string { return "urn:oasis:names:tc:xacml:3.0:function:string-substring" }
func (substringFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: value.TypeString},
			{Kind: expr.ParamValue, Type: value.TypeInteger},
			{Kind: expr.ParamValue, Type: value.TypeInteger},
		},
		Return: value.TypeString,
	}
}

func (substringFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	s := results[0].Value.Raw().(string)
	begin := int(results[1].Value.Raw().(int64))
	end := int(results[2].Value.Raw().(int64))
	if end < 0 {
		end = len(s)
	}
	if begin < 0 || begin > len(s) || end > len(s) || begin > end {
		return indeterminate("string-substring: indices [%d,%d) out of range for length %d", begin, end, len(s))
	}
	return expr.Single(value.New(value.TypeString, s[begin:end])), nil
}

func init() {
	expr.Global.Register(concatenateFn{})
	expr.Global.Register(unaryStringFn{
		id: "urn:oasis:names:tc:xacml:1.0:function:string-normalize-space",
		fn: strings.TrimSpace,
	})
	expr.Global.Register(unaryStringFn{
		id: "urn:oasis:names:tc:xacml:1.0:function:string-normalize-to-lower-case",
		fn: strings.ToLower,
	})
	expr.Global.Register(binaryStringPredicateFn{
		id: "urn:oasis:names:tc:xacml:3.0:function:string-starts-with",
		fn: func(prefix, s string) bool { return strings.HasPrefix(s, prefix) },
	})
	expr.Global.Register(binaryStringPredicateFn{
		id: "urn:oasis:names:tc:xacml:3.0:function:string-ends-with",
		fn: func(suffix, s string) bool { return strings.HasSuffix(s, suffix) },
	})
	expr.Global.Register(binaryStringPredicateFn{
		id: "urn:oasis:names:tc:xacml:3.0:function:string-contains",
		fn: func(substr, s string) bool { return strings.Contains(s, substr) },
	})
	expr.Global.Register(substringFn{})
}

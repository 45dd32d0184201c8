package function

import (
	"math"

	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

type arithOp int

const (
	opAdd arithOp = iota
	opSubtract
	opMultiply
	opDivide
)

func (o arithOp) name() string {
	switch o {
	case opAdd:
		return "add"
	case opSubtract:
		return "subtract"
	case opMultiply:
		return "multiply"
	default:
		return "divide"
	}
}

// integerArithFn implements integer-add/subtract/multiply/divide
// (integer-mod is integerModFn).
type integerArithFn struct {
	op arithOp
}

func (f integerArithFn) ID() string {
	return "urn:oasis:names:tc:xacml:1.0:function:integer-" + f.op.name()
}
func (f integerArithFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: value.TypeInteger},
			{Kind: expr.ParamValue, Type: value.TypeInteger},
		},
		Return: value.TypeInteger,
	}
}

func (f integerArithFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	a := results[0].Value.Raw().(int64)
	b := results[1].Value.Raw().(int64)
	var out int64
	switch f.op {
	case opAdd:
		out = a + b
	case opSubtract:
		out = a - b
	case opMultiply:
		out = a * b
	case opDivide:
		if b == 0 {
			return indeterminate("integer-divide: division by zero")
		}
		out = a / b
	}
	return expr.Single(value.New(value.TypeInteger, out)), nil
}

type integerModFn struct{}

func (integerModFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:integer-mod" }
func (integerModFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: value.TypeInteger},
			{Kind: expr.ParamValue, Type: value.TypeInteger},
		},
		Return: value.TypeInteger,
	}
}

func (integerModFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	a := results[0].Value.Raw().(int64)
	b := results[1].Value.Raw().(int64)
	if b == 0 {
		return indeterminate("integer-mod: division by zero")
	}
	return expr.Single(value.New(value.TypeInteger, a%b)), nil
}

// doubleArithFn implements double-add/subtract/multiply/divide.
type doubleArithFn struct {
	op arithOp
}

func (f doubleArithFn) ID() string {
	return "urn:oasis:names:tc:xacml:1.0:function:double-" + f.op.name()
}
func (f doubleArithFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: value.TypeDouble},
			{Kind: expr.ParamValue, Type: value.TypeDouble},
		},
		Return: value.TypeDouble,
	}
}

func (f doubleArithFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	a := results[0].Value.Raw().(float64)
	b := results[1].Value.Raw().(float64)
	var out float64
	switch f.op {
	case opAdd:
		out = a + b
	case opSubtract:
		out = a - b
	case opMultiply:
		out = a * b
	case opDivide:
		if b == 0 {
			return indeterminate("double-divide: division by zero")
		}
		out = a / b
	}
	return expr.Single(value.New(value.TypeDouble, out)), nil
}

type absFn struct {
	dt value.Datatype
}

func (f absFn) ID() string {
	return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-abs"
}
func (f absFn) Signature() expr.Signature {
	return expr.Signature{Params: []expr.Param{{Kind: expr.ParamValue, Type: f.dt}}, Return: f.dt}
}

func (f absFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	r, err := args[0].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	if f.dt == value.TypeInteger {
		n := r.Value.Raw().(int64)
		if n < 0 {
			n = -n
		}
		return expr.Single(value.New(value.TypeInteger, n)), nil
	}
	d := r.Value.Raw().(float64)
	return expr.Single(value.New(value.TypeDouble, math.Abs(d))), nil
}

func init() {
	for _, op := range []arithOp{opAdd, opSubtract, opMultiply, opDivide} {
		expr.Global.Register(integerArithFn{op: op})
		expr.Global.Register(doubleArithFn{op: op})
	}
	expr.Global.Register(integerModFn{})
	expr.Global.Register(absFn{dt: value.TypeInteger})
	expr.Global.Register(absFn{dt: value.TypeDouble})
}

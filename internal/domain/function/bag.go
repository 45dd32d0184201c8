package function

import (
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// bagDatatypes lists every primitive datatype the bag-manipulation family
// (bag, bag-size, is-in, one-and-only, union, intersection,
// at-least-one-member-of, subset, set-equals) is instantiated for.
var bagDatatypes = []value.Datatype{
	value.TypeString, value.TypeBoolean, value.TypeInteger, value.TypeDouble,
	value.TypeDate, value.TypeTime, value.TypeDateTime,
	value.TypeDayTimeDuration, value.TypeYearMonthDuration,
	value.TypeAnyURI, value.TypeX500Name, value.TypeRFC822Name,
	value.TypeHexBinary, value.TypeBase64Binary, value.TypeIPAddress, value.TypeDNSName,
}

// bagConstructFn implements {type}-bag: collects N scalar arguments into a bag.
type bagConstructFn struct{ dt value.Datatype }

func (f bagConstructFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-bag" }
func (f bagConstructFn) Signature() expr.Signature {
	return expr.Signature{
		Params:   []expr.Param{{Kind: expr.ParamValue, Type: f.dt}},
		Variadic: true,
		Return:   f.dt,
		ReturnsBag: true,
	}
}

func (f bagConstructFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	values := make([]value.AttributeValue, len(results))
	for i, r := range results {
		values[i] = r.Value
	}
	return expr.OfBag(value.NewBag(f.dt, values...)), nil
}

// bagSizeFn implements {type}-bag-size.
type bagSizeFn struct{ dt value.Datatype }

func (f bagSizeFn) ID() string {
	return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-bag-size"
}
func (f bagSizeFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamBag, Type: f.dt}},
		Return: value.TypeInteger,
	}
}

func (f bagSizeFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	r, err := args[0].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	return expr.Single(value.New(value.TypeInteger, int64(r.Bag.Size()))), nil
}

// oneAndOnlyFn implements {type}-one-and-only: the bag must contain exactly
// one value, which becomes the scalar result.
type oneAndOnlyFn struct{ dt value.Datatype }

func (f oneAndOnlyFn) ID() string {
	return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-one-and-only"
}
func (f oneAndOnlyFn) Signature() expr.Signature {
	return expr.Signature{Params: []expr.Param{{Kind: expr.ParamBag, Type: f.dt}}, Return: f.dt}
}

func (f oneAndOnlyFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	r, err := args[0].Evaluate(ctx)
	if err != nil {
		return expr.Result{}, err
	}
	if r.Bag.Size() != 1 {
		return indeterminate("%s-one-and-only: bag has %d values, expected exactly 1", shortName(f.dt), r.Bag.Size())
	}
	return expr.Single(r.Bag.Values[0]), nil
}

// isInFn implements {type}-is-in: scalar membership test against a bag.
type isInFn struct{ dt value.Datatype }

func (f isInFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-is-in" }
func (f isInFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: f.dt},
			{Kind: expr.ParamBag, Type: f.dt},
		},
		Return: value.TypeBoolean,
	}
}

func (f isInFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	return boolResult(results[1].Bag.Contains(results[0].Value)), nil
}

func dedupe(b value.Bag) []value.AttributeValue {
	out := make([]value.AttributeValue, 0, len(b.Values))
	for _, v := range b.Values {
		dup := false
		for _, o := range out {
			if o.Equal(v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

// unionFn implements {type}-bag-union.
type unionFn struct{ dt value.Datatype }

func (f unionFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-bag-union" }
func (f unionFn) Signature() expr.Signature {
	return expr.Signature{
		Params:     []expr.Param{{Kind: expr.ParamBag, Type: f.dt}, {Kind: expr.ParamBag, Type: f.dt}},
		Return:     f.dt,
		ReturnsBag: true,
	}
}

func (f unionFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	combined := append(append([]value.AttributeValue{}, results[0].Bag.Values...), results[1].Bag.Values...)
	merged := dedupe(value.NewBag(f.dt, combined...))
	return expr.OfBag(value.NewBag(f.dt, merged...)), nil
}

// intersectionFn implements {type}-bag-intersection.
type intersectionFn struct{ dt value.Datatype }

func (f intersectionFn) ID() string {
	return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-bag-intersection"
}
func (f intersectionFn) Signature() expr.Signature {
	return expr.Signature{
		Params:     []expr.Param{{Kind: expr.ParamBag, Type: f.dt}, {Kind: expr.ParamBag, Type: f.dt}},
		Return:     f.dt,
		ReturnsBag: true,
	}
}

func (f intersectionFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	var out []value.AttributeValue
	for _, v := range dedupe(results[0].Bag) {
		if results[1].Bag.Contains(v) {
			out = append(out, v)
		}
	}
	return expr.OfBag(value.NewBag(f.dt, out...)), nil
}

// atLeastOneMemberOfFn implements {type}-at-least-one-member-of.
type atLeastOneMemberOfFn struct{ dt value.Datatype }

func (f atLeastOneMemberOfFn) ID() string {
	return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-at-least-one-member-of"
}
func (f atLeastOneMemberOfFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamBag, Type: f.dt}, {Kind: expr.ParamBag, Type: f.dt}},
		Return: value.TypeBoolean,
	}
}

func (f atLeastOneMemberOfFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	for _, v := range results[0].Bag.Values {
		if results[1].Bag.Contains(v) {
			return boolResult(true), nil
		}
	}
	return boolResult(false), nil
}

// subsetFn implements {type}-subset.
type subsetFn struct{ dt value.Datatype }

func (f subsetFn) ID() string { return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-subset" }
func (f subsetFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamBag, Type: f.dt}, {Kind: expr.ParamBag, Type: f.dt}},
		Return: value.TypeBoolean,
	}
}

func (f subsetFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	for _, v := range dedupe(results[0].Bag) {
		if !results[1].Bag.Contains(v) {
			return boolResult(false), nil
		}
	}
	return boolResult(true), nil
}

// setEqualsFn implements {type}-set-equals: subset in both directions.
type setEqualsFn struct{ dt value.Datatype }

func (f setEqualsFn) ID() string {
	return "urn:oasis:names:tc:xacml:1.0:function:" + shortName(f.dt) + "-set-equals"
}
func (f setEqualsFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{{Kind: expr.ParamBag, Type: f.dt}, {Kind: expr.ParamBag, Type: f.dt}},
		Return: value.TypeBoolean,
	}
}

func (f setEqualsFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	a, b := dedupe(results[0].Bag), dedupe(results[1].Bag)
	if len(a) != len(b) {
		return boolResult(false), nil
	}
	for _, v := range a {
		found := false
		for _, w := range b {
			if v.Equal(w) {
				found = true
				break
			}
		}
		if !found {
			return boolResult(false), nil
		}
	}
	return boolResult(true), nil
}

func init() {
	for _, dt := range bagDatatypes {
		expr.Global.Register(bagConstructFn{dt: dt})
		expr.Global.Register(bagSizeFn{dt: dt})
		expr.Global.Register(oneAndOnlyFn{dt: dt})
		expr.Global.Register(isInFn{dt: dt})
		expr.Global.Register(unionFn{dt: dt})
		expr.Global.Register(intersectionFn{dt: dt})
		expr.Global.Register(atLeastOneMemberOfFn{dt: dt})
		expr.Global.Register(subsetFn{dt: dt})
		expr.Global.Register(setEqualsFn{dt: dt})
	}
}

package function

import (
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

type compareOp int

const (
	opGreaterThan compareOp = iota
	opGreaterOrEqual
	opLessThan
	opLessOrEqual
)

func (o compareOp) suffix() string {
	switch o {
	case opGreaterThan:
		return "greater-than"
	case opGreaterOrEqual:
		return "greater-than-or-equal"
	case opLessThan:
		return "less-than"
	default:
		return "less-than-or-equal"
	}
}

func (o compareOp) eval(less, equal bool) bool {
	switch o {
	case opGreaterThan:
		return !less && !equal
	case opGreaterOrEqual:
		return !less
	case opLessThan:
		return less
	default:
		return less || equal
	}
}

// comparisonFn implements the {type}-greater-than / -less-than family
// (XACML 3.0 Appendix A.3.2/A.3.6/A.3.9) for every datatype with a defined
// canonical ordering (value.AttributeValue.Less).
type comparisonFn struct {
	id string
	dt value.Datatype
	op compareOp
}

func (f comparisonFn) ID() string { return f.id }
func (f comparisonFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: f.dt},
			{Kind: expr.ParamValue, Type: f.dt},
		},
		Return: value.TypeBoolean,
	}
}

func (f comparisonFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	a, b := results[0].Value, results[1].Value
	less, ok := a.Less(b)
	if !ok {
		return indeterminate("%s: %s has no defined ordering", f.id, f.dt)
	}
	equal := a.Equal(b)
	return boolResult(f.op.eval(less, equal)), nil
}

var orderedDatatypes = []value.Datatype{
	value.TypeInteger, value.TypeDouble, value.TypeString,
	value.TypeDate, value.TypeTime, value.TypeDateTime,
	value.TypeDayTimeDuration, value.TypeYearMonthDuration,
}

func init() {
	for _, dt := range orderedDatatypes {
		for _, op := range []compareOp{opGreaterThan, opGreaterOrEqual, opLessThan, opLessOrEqual} {
			ns := "urn:oasis:names:tc:xacml:1.0:function:"
			if dt == value.TypeDayTimeDuration || dt == value.TypeYearMonthDuration {
				ns = "urn:oasis:names:tc:xacml:3.0:function:"
			}
			id := ns + shortName(dt) + "-" + op.suffix()
			expr.Global.Register(comparisonFn{id: id, dt: dt, op: op})
		}
	}
}

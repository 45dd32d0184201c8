package function

import (
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// equalFn implements the family of {type}-equal predicates (XACML 3.0
// Appendix A.3.1): two scalars of the same declared datatype, compared
// with AttributeValue.Equal.
type equalFn struct {
	id string
	dt value.Datatype
}

func (f equalFn) ID() string { return f.id }
func (f equalFn) Signature() expr.Signature {
	return expr.Signature{
		Params: []expr.Param{
			{Kind: expr.ParamValue, Type: f.dt},
			{Kind: expr.ParamValue, Type: f.dt},
		},
		Return: value.TypeBoolean,
	}
}

func (f equalFn) Call(ctx expr.Context, args []expr.Expression) (expr.Result, error) {
	results, err := expr.EvalAll(ctx, args)
	if err != nil {
		return expr.Result{}, err
	}
	return boolResult(results[0].Value.Equal(results[1].Value)), nil
}

// equalityDatatypes lists every primitive datatype standard XACML defines
// an {type}-equal predicate for (spec.md component A's 16 primitives,
// minus ipAddress/dnsName which the standard covers instead with
// network-match predicates, not equality).
var equalityDatatypes = []value.Datatype{
	value.TypeString, value.TypeBoolean, value.TypeInteger, value.TypeDouble,
	value.TypeDate, value.TypeTime, value.TypeDateTime,
	value.TypeDayTimeDuration, value.TypeYearMonthDuration,
	value.TypeAnyURI, value.TypeX500Name, value.TypeRFC822Name,
	value.TypeHexBinary, value.TypeBase64Binary,
}

func equalFunctionID(dt value.Datatype) string {
	ns := "urn:oasis:names:tc:xacml:1.0:function:"
	switch dt {
	case value.TypeDayTimeDuration, value.TypeYearMonthDuration:
		ns = "urn:oasis:names:tc:xacml:3.0:function:"
	}
	return ns + shortName(dt) + "-equal"
}

// shortName maps a Datatype URN to the short identifier XACML function
// names embed (e.g. "integer", "dateTime").
func shortName(dt value.Datatype) string {
	switch dt {
	case value.TypeString:
		return "string"
	case value.TypeBoolean:
		return "boolean"
	case value.TypeInteger:
		return "integer"
	case value.TypeDouble:
		return "double"
	case value.TypeDate:
		return "date"
	case value.TypeTime:
		return "time"
	case value.TypeDateTime:
		return "dateTime"
	case value.TypeDayTimeDuration:
		return "dayTimeDuration"
	case value.TypeYearMonthDuration:
		return "yearMonthDuration"
	case value.TypeAnyURI:
		return "anyURI"
	case value.TypeX500Name:
		return "x500Name"
	case value.TypeRFC822Name:
		return "rfc822Name"
	case value.TypeHexBinary:
		return "hexBinary"
	case value.TypeBase64Binary:
		return "base64Binary"
	case value.TypeIPAddress:
		return "ipAddress"
	case value.TypeDNSName:
		return "dnsName"
	default:
		return string(dt)
	}
}

func init() {
	for _, dt := range equalityDatatypes {
		expr.Global.Register(equalFn{id: equalFunctionID(dt), dt: dt})
	}
}

// Package value implements the XACML typed value and datatype model: the
// primitive datatype registry, attribute values, bags, and attribute
// identifiers (AttributeFqn). It has no dependency on expression or policy
// evaluation; it is the leaf layer every other domain package builds on.
package value

import "fmt"

// Datatype identifies a primitive XACML datatype by URI. Bags are not a
// separate Datatype value — a Bag carries the Datatype of its elements.
type Datatype string

// Standard XACML 3.0 primitive datatypes (spec.md §3).
const (
	TypeString            Datatype = "http://www.w3.org/2001/XMLSchema#string"
	TypeBoolean           Datatype = "http://www.w3.org/2001/XMLSchema#boolean"
	TypeInteger           Datatype = "http://www.w3.org/2001/XMLSchema#integer"
	TypeDouble            Datatype = "http://www.w3.org/2001/XMLSchema#double"
	TypeTime              Datatype = "http://www.w3.org/2001/XMLSchema#time"
	TypeDate              Datatype = "http://www.w3.org/2001/XMLSchema#date"
	TypeDateTime          Datatype = "http://www.w3.org/2001/XMLSchema#dateTime"
	TypeDayTimeDuration   Datatype = "urn:oasis:names:tc:xacml:2.0:data-type:dayTimeDuration"
	TypeYearMonthDuration Datatype = "urn:oasis:names:tc:xacml:2.0:data-type:yearMonthDuration"
	TypeAnyURI            Datatype = "http://www.w3.org/2001/XMLSchema#anyURI"
	TypeHexBinary         Datatype = "http://www.w3.org/2001/XMLSchema#hexBinary"
	TypeBase64Binary      Datatype = "http://www.w3.org/2001/XMLSchema#base64Binary"
	TypeX500Name          Datatype = "urn:oasis:names:tc:xacml:1.0:data-type:x500Name"
	TypeRFC822Name        Datatype = "urn:oasis:names:tc:xacml:1.0:data-type:rfc822Name"
	TypeIPAddress         Datatype = "urn:oasis:names:tc:xacml:2.0:data-type:ipAddress"
	TypeDNSName           Datatype = "urn:oasis:names:tc:xacml:2.0:data-type:dnsName"
)

// SyntaxError reports a malformed lexical value or an unknown datatype.
// It is fatal for the artifact it was found in (policy load or request
// parse) per spec.md §7.
type SyntaxError struct {
	Datatype Datatype
	Lexical  string
	Cause    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: cannot parse %q as %s: %v", e.Lexical, e.Datatype, e.Cause)
}

func (e *SyntaxError) Unwrap() error { return e.Cause }

// codec bundles the operations the registry needs per primitive datatype:
// parsing from lexical form, canonicalization, equality, and an optional
// ordering used by comparison functions (nil when the datatype has no
// defined total order, e.g. hexBinary).
type codec struct {
	parse     func(lexical string) (any, error)
	canonical func(payload any) string
	equal     func(a, b any) bool
	less      func(a, b any) (bool, bool) // (a<b, ok); ok=false if incomparable
}

var registry = map[Datatype]codec{}

func register(dt Datatype, c codec) {
	registry[dt] = c
}

// IsRegistered reports whether dt has a registered codec.
func IsRegistered(dt Datatype) bool {
	_, ok := registry[dt]
	return ok
}

// Parse parses lexical as datatype dt, returning a SyntaxError wrapping the
// underlying parse failure on malformed input or an unregistered datatype.
func Parse(dt Datatype, lexical string) (AttributeValue, error) {
	c, ok := registry[dt]
	if !ok {
		return AttributeValue{}, &SyntaxError{Datatype: dt, Lexical: lexical, Cause: fmt.Errorf("unknown datatype")}
	}
	payload, err := c.parse(lexical)
	if err != nil {
		return AttributeValue{}, &SyntaxError{Datatype: dt, Lexical: lexical, Cause: err}
	}
	return AttributeValue{dtype: dt, payload: payload}, nil
}

// FactoryFor returns a function that parses lexical forms of dt, mirroring
// the source's per-datatype factory lookup (spec.md §4.A).
func FactoryFor(dt Datatype) (func(lexical string) (AttributeValue, error), bool) {
	if _, ok := registry[dt]; !ok {
		return nil, false
	}
	return func(lexical string) (AttributeValue, error) { return Parse(dt, lexical) }, true
}

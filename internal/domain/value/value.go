package value

import "encoding/json"

// AttributeValue is an immutable (Datatype, payload) pair. Equality is by
// (datatype, canonical form) per spec.md §3.
type AttributeValue struct {
	dtype   Datatype
	payload any
}

// Type returns the value's datatype.
func (v AttributeValue) Type() Datatype { return v.dtype }

// Raw returns the internal Go representation. Built-in functions type-switch
// on it; it is not part of the stable external contract.
func (v AttributeValue) Raw() any { return v.payload }

// New constructs an AttributeValue directly from a Go payload already in the
// codec's internal representation. Used by built-in functions that produce
// values (e.g. string-concatenate) without round-tripping through lexical
// form.
func New(dt Datatype, payload any) AttributeValue {
	return AttributeValue{dtype: dt, payload: payload}
}

// CanonicalForm returns the value's canonical lexical representation.
func (v AttributeValue) CanonicalForm() string {
	c, ok := registry[v.dtype]
	if !ok {
		return ""
	}
	return c.canonical(v.payload)
}

// Equal reports whether v and other have the same datatype and canonical
// form.
func (v AttributeValue) Equal(other AttributeValue) bool {
	if v.dtype != other.dtype {
		return false
	}
	c, ok := registry[v.dtype]
	if !ok {
		return false
	}
	return c.equal(v.payload, other.payload)
}

// Less reports whether v orders strictly before other under the datatype's
// canonical ordering. ok is false when the datatype defines no order.
func (v AttributeValue) Less(other AttributeValue) (less bool, ok bool) {
	if v.dtype != other.dtype {
		return false, false
	}
	c, reg := registry[v.dtype]
	if !reg || c.less == nil {
		return false, false
	}
	return c.less(v.payload, other.payload)
}

// jsonForm is AttributeValue's wire shape: datatype plus canonical lexical
// form, mirroring how the request/response codec (outside this core)
// round-trips values.
type jsonForm struct {
	Datatype Datatype `json:"datatype"`
	Lexical  string   `json:"lexical"`
}

// MarshalJSON encodes v as its datatype plus canonical lexical form, so
// values survive a decision-cache round trip without needing per-datatype
// Go types in the serialized shape.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonForm{Datatype: v.dtype, Lexical: v.CanonicalForm()})
}

// UnmarshalJSON decodes v from the shape MarshalJSON produces, re-parsing
// the lexical form through the same codec Parse uses.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var f jsonForm
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	parsed, err := Parse(f.Datatype, f.Lexical)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// AttributeFqn identifies a named attribute by (category, id, issuer).
// Equality is component-wise; a missing Issuer ("") on a designator may
// match any issuer on a stored attribute unless strict mode is configured
// (spec.md §3, §7.11 XACML 5.29).
type AttributeFqn struct {
	Category string
	ID       string
	Issuer   string
}

// Matches reports whether d (a designator's FQN, Issuer possibly empty)
// matches candidate under the given strictness. When strict is false and
// d.Issuer is empty, any issuer on candidate matches.
func (d AttributeFqn) Matches(candidate AttributeFqn, strict bool) bool {
	if d.Category != candidate.Category || d.ID != candidate.ID {
		return false
	}
	if d.Issuer == "" && !strict {
		return true
	}
	return d.Issuer == candidate.Issuer
}

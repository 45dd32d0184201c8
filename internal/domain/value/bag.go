package value

import "github.com/lattice-abac/pdp/internal/domain/status"

// Bag is an unordered multiset of values of a single primitive datatype. A
// failed evaluation may produce an empty bag carrying a Cause — distinct
// from a genuinely empty bag without one (spec.md §3).
type Bag struct {
	Type   Datatype
	Values []AttributeValue
	Cause  *status.Status
}

// NewBag builds a bag of the given datatype and values. It does not
// deduplicate — a bag is a multiset.
func NewBag(dt Datatype, values ...AttributeValue) Bag {
	return Bag{Type: dt, Values: values}
}

// EmptyBag returns an empty bag of dt with no cause.
func EmptyBag(dt Datatype) Bag {
	return Bag{Type: dt}
}

// EmptyBagWithCause returns an empty bag of dt annotated with the reason
// evaluation produced no values.
func EmptyBagWithCause(dt Datatype, cause status.Status) Bag {
	return Bag{Type: dt, Cause: &cause}
}

// Size returns the number of values in the bag.
func (b Bag) Size() int { return len(b.Values) }

// IsEmpty reports whether the bag has no values, irrespective of Cause.
func (b Bag) IsEmpty() bool { return len(b.Values) == 0 }

// Contains reports whether v is present in the bag (by AttributeValue.Equal).
func (b Bag) Contains(v AttributeValue) bool {
	for _, e := range b.Values {
		if e.Equal(v) {
			return true
		}
	}
	return false
}

// Equal reports whether b and other hold the same datatype and the same
// multiset of values (order-independent, duplicate-count-sensitive).
func (b Bag) Equal(other Bag) bool {
	if b.Type != other.Type || len(b.Values) != len(other.Values) {
		return false
	}
	used := make([]bool, len(other.Values))
	for _, v := range b.Values {
		found := false
		for i, o := range other.Values {
			if used[i] {
				continue
			}
			if v.Equal(o) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

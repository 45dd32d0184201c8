package value

import (
	"testing"

	"github.com/lattice-abac/pdp/internal/domain/status"
)

func mustParse(t *testing.T, dt Datatype, lexical string) AttributeValue {
	t.Helper()
	v, err := Parse(dt, lexical)
	if err != nil {
		t.Fatalf("Parse(%s, %q): %v", dt, lexical, err)
	}
	return v
}

func TestBagEqualAsMultiset(t *testing.T) {
	a := NewBag(TypeInteger, mustParse(t, TypeInteger, "1"), mustParse(t, TypeInteger, "2"), mustParse(t, TypeInteger, "1"))
	b := NewBag(TypeInteger, mustParse(t, TypeInteger, "2"), mustParse(t, TypeInteger, "1"), mustParse(t, TypeInteger, "1"))
	if !a.Equal(b) {
		t.Error("bags with the same multiset of values in different order must be equal")
	}

	c := NewBag(TypeInteger, mustParse(t, TypeInteger, "1"), mustParse(t, TypeInteger, "2"))
	if a.Equal(c) {
		t.Error("bags with different duplicate counts must not be equal")
	}
}

func TestEmptyBagWithCauseDistinctFromPlainEmpty(t *testing.T) {
	plain := EmptyBag(TypeString)
	withCause := EmptyBagWithCause(TypeString, status.New(status.MissingAttribute, "subject-id missing"))

	if !plain.IsEmpty() || !withCause.IsEmpty() {
		t.Fatal("both bags must report empty")
	}
	if plain.Cause != nil {
		t.Error("plain empty bag must carry no cause")
	}
	if withCause.Cause == nil {
		t.Error("withCause bag must carry a cause")
	}
}

func TestBagContains(t *testing.T) {
	b := NewBag(TypeString, mustParse(t, TypeString, "a"), mustParse(t, TypeString, "b"))
	if !b.Contains(mustParse(t, TypeString, "a")) {
		t.Error("expected bag to contain \"a\"")
	}
	if b.Contains(mustParse(t, TypeString, "c")) {
		t.Error("expected bag not to contain \"c\"")
	}
}

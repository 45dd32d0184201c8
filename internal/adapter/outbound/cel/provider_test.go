package cel

import (
	"context"
	"testing"

	"github.com/lattice-abac/pdp/internal/domain/pip"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

func TestProviderDerivesSeniorFlag(t *testing.T) {
	yearsOfService := pip.Designator{Category: "subject", ID: "years-of-service", Datatype: value.TypeInteger}
	isSenior := pip.Designator{Category: "subject", ID: "is-senior", Datatype: value.TypeBoolean}

	p, err := NewProvider("tenure", []DesignatorExpr{{
		Designator: isSenior,
		Expression: "years >= 5",
		Vars:       []Var{{Ident: "years", Designator: yearsOfService}},
	}})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	lookup := func(d pip.Designator) (value.Bag, error) {
		if d == yearsOfService {
			return value.NewBag(value.TypeInteger, value.New(value.TypeInteger, int64(7))), nil
		}
		return value.EmptyBag(d.Datatype), nil
	}

	bag, err := p.Resolve(context.Background(), isSenior, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bag.IsEmpty() || bag.Values[0].Raw().(bool) != true {
		t.Fatalf("expected is-senior=true, got %+v", bag)
	}

	if len(p.Requires()) != 1 || p.Requires()[0] != yearsOfService {
		t.Fatalf("expected Requires() = [years-of-service], got %+v", p.Requires())
	}
	if len(p.Provides()) != 1 || p.Provides()[0] != isSenior {
		t.Fatalf("expected Provides() = [is-senior], got %+v", p.Provides())
	}
}

func TestProviderMissingRequirementYieldsEmptyBag(t *testing.T) {
	src := pip.Designator{Category: "subject", ID: "years-of-service", Datatype: value.TypeInteger}
	dst := pip.Designator{Category: "subject", ID: "is-senior", Datatype: value.TypeBoolean}

	p, err := NewProvider("tenure", []DesignatorExpr{{
		Designator: dst,
		Expression: "years >= 5",
		Vars:       []Var{{Ident: "years", Designator: src}},
	}})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	lookup := func(pip.Designator) (value.Bag, error) { return value.EmptyBag(value.TypeInteger), nil }
	bag, err := p.Resolve(context.Background(), dst, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bag.IsEmpty() {
		t.Fatalf("expected empty bag when a required attribute is missing, got %+v", bag)
	}
}

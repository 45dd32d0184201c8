package expr

import (
	"testing"
	"time"

	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// fakeContext is a minimal Context used to unit-test the expression nodes
// in isolation from evalctx.
type fakeContext struct {
	designators map[string]value.Bag
	vars        map[string]Result
	done        chan struct{}
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		designators: make(map[string]value.Bag),
		vars:        make(map[string]Result),
		done:        make(chan struct{}),
	}
}

func (f *fakeContext) ResolveDesignator(fqn value.AttributeFqn, dt value.Datatype, mustBePresent bool) (value.Bag, error) {
	if b, ok := f.designators[fqn.ID]; ok {
		return b, nil
	}
	if mustBePresent {
		return value.Bag{}, NewIndeterminate(status.MissingAttribute, "missing "+fqn.ID)
	}
	return value.EmptyBag(dt), nil
}

func (f *fakeContext) ResolveSelector(category, path string, dt value.Datatype, mustBePresent bool, contextSelectorID string) (value.Bag, error) {
	return value.EmptyBag(dt), nil
}

func (f *fakeContext) ResolveVariable(id string) (Result, error) {
	if r, ok := f.vars[id]; ok {
		return r, nil
	}
	return Result{}, NewIndeterminate(status.ProcessingError, "unknown variable "+id)
}

func (f *fakeContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (f *fakeContext) Done() <-chan struct{}       { return f.done }

// constFn is a trivial Function used to exercise Apply.
type constFn struct {
	id  string
	sig Signature
	out Result
	err error
}

func (c *constFn) ID() string          { return c.id }
func (c *constFn) Signature() Signature { return c.sig }
func (c *constFn) Call(ctx Context, args []Expression) (Result, error) {
	if c.err != nil {
		return Result{}, c.err
	}
	return c.out, nil
}

func TestLiteralEvaluate(t *testing.T) {
	v, _ := value.Parse(value.TypeInteger, "5")
	lit := &Literal{V: v}
	r, err := lit.Evaluate(newFakeContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.IsBag || !r.Value.Equal(v) {
		t.Errorf("expected scalar result %v, got %+v", v, r)
	}
}

func TestDesignatorMustBePresentMissing(t *testing.T) {
	d := &Designator{
		Fqn:           value.AttributeFqn{Category: "subject", ID: "subject-id"},
		Datatype:      value.TypeString,
		MustBePresent: true,
	}
	_, err := d.Evaluate(newFakeContext())
	ind, ok := AsIndeterminate(err)
	if !ok {
		t.Fatalf("expected Indeterminate, got %v", err)
	}
	if ind.Status.Code != status.MissingAttribute {
		t.Errorf("expected MissingAttribute, got %s", ind.Status.Code)
	}
}

func TestDesignatorOptionalMissingReturnsEmptyBag(t *testing.T) {
	d := &Designator{Fqn: value.AttributeFqn{ID: "x"}, Datatype: value.TypeString}
	r, err := d.Evaluate(newFakeContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsBag || !r.Bag.IsEmpty() {
		t.Errorf("expected empty bag, got %+v", r)
	}
}

func TestApplyValidatesArity(t *testing.T) {
	fn := &constFn{id: "test:one-arg", sig: Signature{
		Params: []Param{{Kind: ParamValue, Type: value.TypeInteger}},
		Return: value.TypeBoolean,
	}}
	v, _ := value.Parse(value.TypeInteger, "1")
	_, err := NewApply(fn, []Expression{&Literal{V: v}, &Literal{V: v}})
	if err == nil {
		t.Fatal("expected arity validation error")
	}
}

func TestApplyValidatesArgType(t *testing.T) {
	fn := &constFn{id: "test:wants-int", sig: Signature{
		Params: []Param{{Kind: ParamValue, Type: value.TypeInteger}},
		Return: value.TypeBoolean,
	}}
	s, _ := value.Parse(value.TypeString, "nope")
	_, err := NewApply(fn, []Expression{&Literal{V: s}})
	if err == nil {
		t.Fatal("expected type-mismatch validation error")
	}
}

func TestApplyPropagatesIndeterminateFromArg(t *testing.T) {
	fn := &constFn{id: "test:passthrough", sig: Signature{
		Params: []Param{{Kind: ParamBag, Type: value.TypeString}},
		Return: value.TypeBoolean,
	}}
	apply, err := NewApply(fn, []Expression{
		&Designator{Fqn: value.AttributeFqn{ID: "missing"}, Datatype: value.TypeString, MustBePresent: true},
	})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	// fn itself doesn't evaluate args (it's a constFn), so to prove
	// propagation we rely on EvalAll explicitly here.
	_, evalErr := EvalAll(newFakeContext(), apply.Args)
	if _, ok := AsIndeterminate(evalErr); !ok {
		t.Fatalf("expected Indeterminate from EvalAll, got %v", evalErr)
	}
}

func TestFunctionRefNotDirectlyEvaluable(t *testing.T) {
	fn := &constFn{id: "test:noop", sig: Signature{Return: value.TypeBoolean}}
	ref := &FunctionRef{Fn: fn}
	_, err := ref.Evaluate(newFakeContext())
	if err == nil {
		t.Fatal("expected error evaluating a bare FunctionRef")
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r := NewRegistry()
	fn := &constFn{id: "dup", sig: Signature{Return: value.TypeBoolean}}
	r.Register(fn)
	r.Register(fn)
}

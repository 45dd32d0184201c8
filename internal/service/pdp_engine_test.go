package service

import (
	"context"
	"testing"
	"time"

	"github.com/lattice-abac/pdp/internal/domain/combining"
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/expr"
	_ "github.com/lattice-abac/pdp/internal/domain/function" // registers expr.Global functions
	"github.com/lattice-abac/pdp/internal/domain/policy"
	"github.com/lattice-abac/pdp/internal/domain/request"
	"github.com/lattice-abac/pdp/internal/domain/resolver"
	"github.com/lattice-abac/pdp/internal/domain/rule"
	"github.com/lattice-abac/pdp/internal/domain/target"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

func adminFqn() value.AttributeFqn {
	return value.AttributeFqn{Category: "subject", ID: "role"}
}

func adminMatchRule(t *testing.T) rule.Rule {
	t.Helper()
	eq, ok := expr.Global.Lookup("urn:oasis:names:tc:xacml:1.0:function:string-equal")
	if !ok {
		t.Fatal("string-equal function not registered")
	}
	m := target.Match{
		Fn:      eq,
		Literal: &expr.Literal{V: value.New(value.TypeString, "admin")},
		Input:   &expr.Designator{Fqn: adminFqn(), Datatype: value.TypeString, MustBePresent: true},
	}
	tgt := target.Target{AnyOfs: []target.AnyOf{{AllOfs: []target.AllOf{{Matches: []target.Match{m}}}}}}
	return rule.Rule{ID: "admin-permit", Effect: decision.Permit, Target: tgt}
}

func buildTestPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	alg, ok := combining.ByID("urn:oasis:names:tc:xacml:3.0:rule-combining-algorithm:deny-overrides")
	if !ok {
		t.Fatal("deny-overrides algorithm not registered")
	}
	return &policy.Policy{
		ID:                 "test-policy",
		Target:             target.Target{},
		CombiningAlgorithm: alg,
		Rules:              []rule.Rule{adminMatchRule(t), {ID: "default-deny", Effect: decision.Deny, Target: target.Target{}}},
	}
}

func newTestEngine(t *testing.T, root policy.Decidable) *PDPEngine {
	t.Helper()
	staticProvider, err := resolver.NewStaticProvider([]policy.Decidable{root})
	if err != nil {
		t.Fatal(err)
	}
	engine, err := NewPDPEngine(root, staticProvider, 10)
	if err != nil {
		t.Fatalf("unexpected error building engine: %v", err)
	}
	return engine
}

func TestPDPEngineEvaluatePermit(t *testing.T) {
	p := buildTestPolicy(t)
	engine := newTestEngine(t, p)

	req := request.Request{Categories: []request.Category{
		{Category: "subject", Attrs: []request.Attribute{
			{FQN: adminFqn(), Values: []value.AttributeValue{value.New(value.TypeString, "admin")}},
		}},
	}}

	resp, err := engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit, got %v (status=%+v)", resp.Results[0].Decision, resp.Results[0].Status)
	}
}

func TestPDPEngineEvaluateDenyDefault(t *testing.T) {
	p := buildTestPolicy(t)
	engine := newTestEngine(t, p)

	req := request.Request{Categories: []request.Category{
		{Category: "subject", Attrs: []request.Attribute{
			{FQN: adminFqn(), Values: []value.AttributeValue{value.New(value.TypeString, "guest")}},
		}},
	}}

	resp, err := engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].Decision != decision.DecisionDeny {
		t.Fatalf("expected Deny, got %v", resp.Results[0].Decision)
	}
}

func TestPDPEngineRejectsInvalidPreprocess(t *testing.T) {
	p := buildTestPolicy(t)
	engine := newTestEngine(t, p)

	resp, err := engine.Evaluate(context.Background(), request.Request{CombinedDecision: true})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if resp.Results[0].Decision != decision.DecisionIndeterminate {
		t.Fatalf("expected Indeterminate for unsupported CombinedDecision, got %v", resp.Results[0].Decision)
	}
}

// TestPDPEngineEvaluatePermitOnSimpleRuleMatch exercises the simplest
// conformance scenario: a single Permit rule whose Target matches
// subject-id and carries no Condition.
func TestPDPEngineEvaluatePermitOnSimpleRuleMatch(t *testing.T) {
	eq, ok := expr.Global.Lookup("urn:oasis:names:tc:xacml:1.0:function:string-equal")
	if !ok {
		t.Fatal("string-equal function not registered")
	}
	subjectIDFqn := value.AttributeFqn{Category: "subject", ID: "subject-id"}
	m := target.Match{
		Fn:      eq,
		Literal: &expr.Literal{V: value.New(value.TypeString, "Julius Hibbert")},
		Input:   &expr.Designator{Fqn: subjectIDFqn, Datatype: value.TypeString, MustBePresent: true},
	}
	tgt := target.Target{AnyOfs: []target.AnyOf{{AllOfs: []target.AllOf{{Matches: []target.Match{m}}}}}}
	alg, ok := combining.ByID("urn:oasis:names:tc:xacml:3.0:rule-combining-algorithm:deny-overrides")
	if !ok {
		t.Fatal("deny-overrides algorithm not registered")
	}
	p := &policy.Policy{
		ID:                 "simple-permit-policy",
		CombiningAlgorithm: alg,
		Rules:              []rule.Rule{{ID: "julius-permit", Effect: decision.Permit, Target: tgt}},
	}
	engine := newTestEngine(t, p)

	req := request.Request{Categories: []request.Category{
		{Category: "subject", Attrs: []request.Attribute{
			{FQN: subjectIDFqn, Values: []value.AttributeValue{value.New(value.TypeString, "Julius Hibbert")}},
		}},
	}}
	resp, err := engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit, got %v", resp.Results[0].Decision)
	}
}

// TestPDPEngineConformanceIID013 mirrors the OASIS IID013 conformance
// scenario: a root PolicySet (permit-overrides) wrapping two child
// Policies (each permit-overrides at the rule level). The first child's
// sole rule never applies (its condition is false); the second child's
// default-deny rule is overridden by a rule that fires once the
// subject/resource age difference is at least 5, yielding a PolicySet-wide
// Permit with no obligations.
func TestPDPEngineConformanceIID013(t *testing.T) {
	ruleAlg, ok := combining.ByID("urn:oasis:names:tc:xacml:3.0:rule-combining-algorithm:permit-overrides")
	if !ok {
		t.Fatal("permit-overrides rule-combining algorithm not registered")
	}
	policyAlg, ok := combining.ByID("urn:oasis:names:tc:xacml:3.0:policy-combining-algorithm:permit-overrides")
	if !ok {
		t.Fatal("permit-overrides policy-combining algorithm not registered")
	}

	ageFqn := value.AttributeFqn{Category: "subject", ID: "age"}
	bartAgeFqn := value.AttributeFqn{Category: "resource", ID: "bart-simpson-age"}
	subjectIDFqn := value.AttributeFqn{Category: "subject", ID: "subject-id"}

	subtractFn, ok := expr.Global.Lookup("urn:oasis:names:tc:xacml:1.0:function:integer-subtract")
	if !ok {
		t.Fatal("integer-subtract function not registered")
	}
	geFn, ok := expr.Global.Lookup("urn:oasis:names:tc:xacml:1.0:function:integer-greater-than-or-equal")
	if !ok {
		t.Fatal("integer-greater-than-or-equal function not registered")
	}

	ageDesignator := &expr.Designator{Fqn: ageFqn, Datatype: value.TypeInteger, MustBePresent: true}
	bartAgeDesignator := &expr.Designator{Fqn: bartAgeFqn, Datatype: value.TypeInteger, MustBePresent: true}
	diff, err := expr.NewApply(subtractFn, []expr.Expression{ageDesignator, bartAgeDesignator})
	if err != nil {
		t.Fatalf("building age-difference apply: %v", err)
	}
	ageDifferenceAtLeastFive, err := expr.NewApply(geFn, []expr.Expression{diff, &expr.Literal{V: value.New(value.TypeInteger, int64(5))}})
	if err != nil {
		t.Fatalf("building age-difference condition: %v", err)
	}

	policy1 := &policy.Policy{
		ID:                 "policy1",
		CombiningAlgorithm: ruleAlg,
		Rules: []rule.Rule{{
			ID:        "policy1-rule1",
			Effect:    decision.Permit,
			Condition: &rule.Condition{Expr: &expr.Literal{V: value.New(value.TypeBoolean, false)}},
		}},
	}
	policy2 := &policy.Policy{
		ID:                 "policy2",
		CombiningAlgorithm: ruleAlg,
		Rules: []rule.Rule{
			{ID: "policy2-rule1", Effect: decision.Deny},
			{ID: "policy2-rule2", Effect: decision.Permit, Condition: &rule.Condition{Expr: ageDifferenceAtLeastFive}},
		},
	}
	root := &policy.PolicySet{
		ID:                 "iid013",
		CombiningAlgorithm: policyAlg,
		Children:           []policy.Decidable{policy1, policy2},
	}
	engine := newTestEngine(t, root)

	req := request.Request{Categories: []request.Category{
		{Category: "subject", Attrs: []request.Attribute{
			{FQN: subjectIDFqn, Values: []value.AttributeValue{value.New(value.TypeString, "Julius Hibbert")}},
			{FQN: ageFqn, Values: []value.AttributeValue{value.New(value.TypeInteger, int64(55))}},
		}},
		{Category: "resource", Attrs: []request.Attribute{
			{FQN: bartAgeFqn, Values: []value.AttributeValue{value.New(value.TypeInteger, int64(10))}},
		}},
	}}
	resp, err := engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit (policy2 rule2 via age-difference >= 5), got %v", resp.Results[0].Decision)
	}
	if len(resp.Results[0].Obligations) != 0 {
		t.Fatalf("expected no obligations, got %v", resp.Results[0].Obligations)
	}
}

func TestPDPEngineEvaluateWithExpiredDeadline(t *testing.T) {
	p := buildTestPolicy(t)
	engine := newTestEngine(t, p)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
	defer cancel()

	req := request.Request{Categories: []request.Category{
		{Category: "subject", Attrs: []request.Attribute{
			{FQN: adminFqn(), Values: []value.AttributeValue{value.New(value.TypeString, "admin")}},
		}},
	}}
	resp, err := engine.Evaluate(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result even with an expired deadline, got %d", len(resp.Results))
	}
}

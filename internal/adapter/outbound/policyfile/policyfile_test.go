package policyfile

import (
	"testing"

	_ "github.com/lattice-abac/pdp/internal/domain/function"

	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/evalctx"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

const adminPolicyYAML = `
policy:
  id: admin-only
  algorithm: urn:oasis:names:tc:xacml:3.0:rule-combining-algorithm:deny-overrides
  rules:
    - id: permit-admin
      effect: Permit
      target:
        anyOf:
          - allOf:
              - match:
                  function: urn:oasis:names:tc:xacml:1.0:function:string-equal
                  literal: {literal: {datatype: string, value: admin}}
                  input: {designator: {category: subject, id: role, datatype: string, mustBePresent: true}}
      obligations:
        - id: log-access
          fulfillOn: Permit
          assignments:
            - attributeId: message
              category: obligation
              expr: {literal: {datatype: string, value: granted}}
    - id: default-deny
      effect: Deny
`

func buildCtx(t *testing.T, named map[value.AttributeFqn]value.Bag) *evalctx.Context {
	t.Helper()
	return evalctx.New(named, evalctx.Snapshot{})
}

func TestLoadPolicyPermitsAdmin(t *testing.T) {
	root, err := Load([]byte(adminPolicyYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx := buildCtx(t, map[value.AttributeFqn]value.Bag{
		{Category: "subject", ID: "role"}: value.NewBag(value.TypeString, value.New(value.TypeString, "admin")),
	})

	eval := root.Evaluate(ctx)
	if eval.Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit, got %+v", eval)
	}
	if len(eval.Obligations) != 1 || eval.Obligations[0].ID != "log-access" {
		t.Fatalf("expected log-access obligation to survive filtering, got %+v", eval.Obligations)
	}
}

func TestLoadPolicyDeniesNonAdmin(t *testing.T) {
	root, err := Load([]byte(adminPolicyYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx := buildCtx(t, map[value.AttributeFqn]value.Bag{
		{Category: "subject", ID: "role"}: value.NewBag(value.TypeString, value.New(value.TypeString, "guest")),
	})

	eval := root.Evaluate(ctx)
	if eval.Decision != decision.DecisionDeny {
		t.Fatalf("expected Deny, got %+v", eval)
	}
	if len(eval.Obligations) != 0 {
		t.Fatalf("expected no obligations on Deny, got %+v", eval.Obligations)
	}
}

func TestLoadRejectsUnknownCombiningAlgorithm(t *testing.T) {
	_, err := Load([]byte(`
policy:
  id: bad
  algorithm: not-a-real-algorithm
  rules: []
`))
	if err == nil {
		t.Fatalf("expected error for unknown combining algorithm")
	}
}

func TestLoadRejectsDocumentWithNeitherPolicyNorPolicySet(t *testing.T) {
	_, err := Load([]byte(`{}`))
	if err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestLoadPolicySetResolvesPolicyIdReference(t *testing.T) {
	const yamlDoc = `
definitions:
  policies:
    - id: admin-only
      algorithm: urn:oasis:names:tc:xacml:3.0:rule-combining-algorithm:deny-overrides
      rules:
        - id: permit-admin
          effect: Permit
          target:
            anyOf:
              - allOf:
                  - match:
                      function: urn:oasis:names:tc:xacml:1.0:function:string-equal
                      literal: {literal: {datatype: string, value: admin}}
                      input: {designator: {category: subject, id: role, datatype: string, mustBePresent: true}}
        - id: default-deny
          effect: Deny
policySet:
  id: root
  algorithm: urn:oasis:names:tc:xacml:3.0:policy-combining-algorithm:deny-overrides
  policyIdReferences:
    - id: admin-only
`
	root, err := Load([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx := buildCtx(t, map[value.AttributeFqn]value.Bag{
		{Category: "subject", ID: "role"}: value.NewBag(value.TypeString, value.New(value.TypeString, "admin")),
	})
	eval := root.Evaluate(ctx)
	if eval.Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit through a resolved policyIdReference, got %+v", eval)
	}
}

func TestLoadRejectsUnresolvablePolicyIdReference(t *testing.T) {
	const yamlDoc = `
policySet:
  id: root
  algorithm: urn:oasis:names:tc:xacml:3.0:policy-combining-algorithm:deny-overrides
  policyIdReferences:
    - id: does-not-exist
`
	if _, err := Load([]byte(yamlDoc)); err == nil {
		t.Fatal("expected an error for a policyIdReference with no matching definition")
	}
}

func TestLoadRejectsCyclicPolicySetIdReference(t *testing.T) {
	const yamlDoc = `
definitions:
  policySets:
    - id: a
      algorithm: urn:oasis:names:tc:xacml:3.0:policy-combining-algorithm:deny-overrides
      policySetIdReferences:
        - id: b
    - id: b
      algorithm: urn:oasis:names:tc:xacml:3.0:policy-combining-algorithm:deny-overrides
      policySetIdReferences:
        - id: a
policySet:
  id: root
  algorithm: urn:oasis:names:tc:xacml:3.0:policy-combining-algorithm:deny-overrides
  policySetIdReferences:
    - id: a
`
	if _, err := Load([]byte(yamlDoc)); err == nil {
		t.Fatal("expected a reference cycle to be rejected at load time")
	}
}

func TestLoadPolicySetNestsPolicies(t *testing.T) {
	const yamlDoc = `
policySet:
  id: root
  algorithm: urn:oasis:names:tc:xacml:3.0:policy-combining-algorithm:deny-overrides
  policies:
    - id: admin-only
      algorithm: urn:oasis:names:tc:xacml:3.0:rule-combining-algorithm:deny-overrides
      rules:
        - id: permit-admin
          effect: Permit
          target:
            anyOf:
              - allOf:
                  - match:
                      function: urn:oasis:names:tc:xacml:1.0:function:string-equal
                      literal: {literal: {datatype: string, value: admin}}
                      input: {designator: {category: subject, id: role, datatype: string, mustBePresent: true}}
        - id: default-deny
          effect: Deny
`
	root, err := Load([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx := buildCtx(t, map[value.AttributeFqn]value.Bag{
		{Category: "subject", ID: "role"}: value.NewBag(value.TypeString, value.New(value.TypeString, "admin")),
	})
	eval := root.Evaluate(ctx)
	if eval.Decision != decision.DecisionPermit {
		t.Fatalf("expected Permit, got %+v", eval)
	}
	if len(eval.PolicyIdentifiers) != 2 {
		t.Fatalf("expected policy set + nested policy ids tracked, got %+v", eval.PolicyIdentifiers)
	}
}

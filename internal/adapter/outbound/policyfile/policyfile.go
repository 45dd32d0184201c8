// Package policyfile loads a Policy/PolicySet tree from a YAML document,
// resolving function/combining-algorithm ids against the live registries
// (expr.Global, combining.ByID) and building the Decidable tree the PDP
// engine evaluates. It is the CLI/test-fixture counterpart of whatever
// wire format a production policy repository uses (spec.md §6 keeps wire
// formats out of this core's own scope).
package policyfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lattice-abac/pdp/internal/domain/combining"
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/policy"
	"github.com/lattice-abac/pdp/internal/domain/resolver"
	"github.com/lattice-abac/pdp/internal/domain/rule"
	"github.com/lattice-abac/pdp/internal/domain/target"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// document is the top-level YAML shape: exactly one of PolicySet/Policy is
// set, matching the XACML rule that a root artifact is either. Definitions
// is an optional flat catalog of further Policy/PolicySet bodies that are
// not part of the root tree themselves but may be pulled in anywhere below
// the root via policyIdReference/policySetIdReference (spec.md §4.H).
type document struct {
	PolicySet   *policySetNode   `yaml:"policySet"`
	Policy      *policyNode      `yaml:"policy"`
	Definitions *definitionsNode `yaml:"definitions"`
}

type definitionsNode struct {
	PolicySets []policySetNode `yaml:"policySets"`
	Policies   []policyNode    `yaml:"policies"`
}

type referenceNode struct {
	ID           string `yaml:"id"`
	VersionMatch string `yaml:"versionMatch"`
}

type policySetNode struct {
	ID                    string           `yaml:"id"`
	Algorithm             string           `yaml:"algorithm"`
	Target                *targetNode      `yaml:"target"`
	PolicySets            []policySetNode  `yaml:"policySets"`
	Policies              []policyNode     `yaml:"policies"`
	PolicyIdReferences    []referenceNode  `yaml:"policyIdReferences"`
	PolicySetIdReferences []referenceNode  `yaml:"policySetIdReferences"`
	Obligations           []obligationNode `yaml:"obligations"`
	Advice                []adviceNode     `yaml:"advice"`
}

type policyNode struct {
	ID          string           `yaml:"id"`
	Algorithm   string           `yaml:"algorithm"`
	Target      *targetNode      `yaml:"target"`
	Rules       []ruleNode       `yaml:"rules"`
	Obligations []obligationNode `yaml:"obligations"`
	Advice      []adviceNode     `yaml:"advice"`
	Variables   map[string]exprNode `yaml:"variables"`
}

type ruleNode struct {
	ID          string           `yaml:"id"`
	Effect      string           `yaml:"effect"`
	Target      *targetNode      `yaml:"target"`
	Condition   *exprNode        `yaml:"condition"`
	Obligations []obligationNode `yaml:"obligations"`
	Advice      []adviceNode     `yaml:"advice"`
}

type targetNode struct {
	AnyOf []anyOfNode `yaml:"anyOf"`
}

type anyOfNode struct {
	AllOf []allOfNode `yaml:"allOf"`
}

type allOfNode struct {
	Match []matchNode `yaml:"match"`
}

type matchNode struct {
	Function string   `yaml:"function"`
	Literal  exprNode `yaml:"literal"`
	Input    exprNode `yaml:"input"`
}

type obligationNode struct {
	ID          string           `yaml:"id"`
	FulfillOn   string           `yaml:"fulfillOn"`
	Assignments []assignmentNode `yaml:"assignments"`
}

type adviceNode struct {
	ID          string           `yaml:"id"`
	AppliesTo   string           `yaml:"appliesTo"`
	Assignments []assignmentNode `yaml:"assignments"`
}

type assignmentNode struct {
	AttributeID string   `yaml:"attributeId"`
	Category    string   `yaml:"category"`
	Expr        exprNode `yaml:"expr"`
}

// exprNode is a tagged union over the Expression node shapes; exactly one
// field should be set.
type exprNode struct {
	Literal    *literalNode    `yaml:"literal"`
	Designator *designatorNode `yaml:"designator"`
	Selector   *selectorNode   `yaml:"selector"`
	Variable   *variableNode   `yaml:"variable"`
	Apply      *applyNode      `yaml:"apply"`
}

type literalNode struct {
	Datatype string `yaml:"datatype"`
	Value    string `yaml:"value"`
}

type designatorNode struct {
	Category      string `yaml:"category"`
	ID            string `yaml:"id"`
	Issuer        string `yaml:"issuer"`
	Datatype      string `yaml:"datatype"`
	MustBePresent bool   `yaml:"mustBePresent"`
}

type selectorNode struct {
	Category          string `yaml:"category"`
	Path              string `yaml:"path"`
	Datatype          string `yaml:"datatype"`
	MustBePresent     bool   `yaml:"mustBePresent"`
	ContextSelectorID string `yaml:"contextSelectorId"`
}

type variableNode struct {
	ID          string `yaml:"id"`
	Datatype    string `yaml:"datatype"`
	IsBagValued bool   `yaml:"isBagValued"`
}

type applyNode struct {
	Function string     `yaml:"function"`
	Args     []exprNode `yaml:"args"`
}

// LoadFile parses and builds the Decidable tree rooted at the document in
// path.
func LoadFile(path string) (policy.Decidable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policyfile: reading %s: %w", path, err)
	}
	return Load(data)
}

// Load parses and builds the Decidable tree rooted at the YAML document in
// data. Definitions (if any) are indexed into a static resolver.Provider
// first, so policyIdReference/policySetIdReference nodes anywhere in the
// root tree — including inside a Definitions entry itself — can resolve
// forward and backward references alike; the whole tree is then validated
// once for cycles/depth overflow before being returned (spec.md §4.H, §9
// "load-time fatal").
func Load(data []byte) (policy.Decidable, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policyfile: parsing yaml: %w", err)
	}

	res := resolver.NewDeferred(0)

	var registry []policy.Decidable
	if doc.Definitions != nil {
		for _, pn := range doc.Definitions.Policies {
			p, err := buildPolicy(pn)
			if err != nil {
				return nil, err
			}
			registry = append(registry, p)
		}
		for _, psn := range doc.Definitions.PolicySets {
			ps, err := buildPolicySet(psn, res)
			if err != nil {
				return nil, err
			}
			registry = append(registry, ps)
		}
	}
	provider, err := resolver.NewStaticProvider(registry)
	if err != nil {
		return nil, fmt.Errorf("policyfile: %w", err)
	}
	res.Bind(provider)

	var root policy.Decidable
	switch {
	case doc.PolicySet != nil:
		root, err = buildPolicySet(*doc.PolicySet, res)
	case doc.Policy != nil:
		root, err = buildPolicy(*doc.Policy)
	default:
		return nil, fmt.Errorf("policyfile: document must set either policySet or policy")
	}
	if err != nil {
		return nil, err
	}
	if err := res.ValidateTree(root); err != nil {
		return nil, fmt.Errorf("policyfile: %w", err)
	}
	return root, nil
}

func buildPolicySet(n policySetNode, res *resolver.Resolver) (*policy.PolicySet, error) {
	alg, ok := combining.ByID(n.Algorithm)
	if !ok {
		return nil, fmt.Errorf("policyfile: policySet %s: unknown combining algorithm %q", n.ID, n.Algorithm)
	}
	tgt, err := buildTarget(n.Target)
	if err != nil {
		return nil, fmt.Errorf("policyfile: policySet %s: %w", n.ID, err)
	}
	ps := &policy.PolicySet{ID: n.ID, Target: tgt, CombiningAlgorithm: alg}
	for _, child := range n.Policies {
		p, err := buildPolicy(child)
		if err != nil {
			return nil, err
		}
		ps.Children = append(ps.Children, p)
	}
	for _, child := range n.PolicySets {
		cps, err := buildPolicySet(child, res)
		if err != nil {
			return nil, err
		}
		ps.Children = append(ps.Children, cps)
	}
	for _, ref := range n.PolicyIdReferences {
		ps.Children = append(ps.Children, &resolver.Reference{Ref: resolver.Ref{ID: ref.ID, VersionMatch: ref.VersionMatch}, Resolver: res})
	}
	for _, ref := range n.PolicySetIdReferences {
		ps.Children = append(ps.Children, &resolver.Reference{Ref: resolver.Ref{ID: ref.ID, VersionMatch: ref.VersionMatch}, Resolver: res})
	}
	obligations, err := buildObligations(n.Obligations)
	if err != nil {
		return nil, err
	}
	advice, err := buildAdvice(n.Advice)
	if err != nil {
		return nil, err
	}
	ps.ObligationExpressions = obligations
	ps.AdviceExpressions = advice
	return ps, nil
}

func buildPolicy(n policyNode) (*policy.Policy, error) {
	alg, ok := combining.ByID(n.Algorithm)
	if !ok {
		return nil, fmt.Errorf("policyfile: policy %s: unknown combining algorithm %q", n.ID, n.Algorithm)
	}
	tgt, err := buildTarget(n.Target)
	if err != nil {
		return nil, fmt.Errorf("policyfile: policy %s: %w", n.ID, err)
	}
	variables := make(map[string]expr.Expression, len(n.Variables))
	for id, vn := range n.Variables {
		e, err := buildExpr(vn)
		if err != nil {
			return nil, fmt.Errorf("policyfile: policy %s: variable %s: %w", n.ID, id, err)
		}
		variables[id] = e
	}
	rules := make([]rule.Rule, 0, len(n.Rules))
	for _, rn := range n.Rules {
		r, err := buildRule(rn)
		if err != nil {
			return nil, fmt.Errorf("policyfile: policy %s: %w", n.ID, err)
		}
		rules = append(rules, r)
	}
	obligations, err := buildObligations(n.Obligations)
	if err != nil {
		return nil, err
	}
	advice, err := buildAdvice(n.Advice)
	if err != nil {
		return nil, err
	}
	return &policy.Policy{
		ID:                    n.ID,
		Target:                tgt,
		CombiningAlgorithm:    alg,
		Rules:                 rules,
		ObligationExpressions: obligations,
		AdviceExpressions:     advice,
		VariableDefinitions:   variables,
	}, nil
}

func buildRule(n ruleNode) (rule.Rule, error) {
	effect, err := parseEffect(n.Effect)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", n.ID, err)
	}
	tgt, err := buildTarget(n.Target)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", n.ID, err)
	}
	r := rule.Rule{ID: n.ID, Effect: effect, Target: tgt}
	if n.Condition != nil {
		e, err := buildExpr(*n.Condition)
		if err != nil {
			return rule.Rule{}, fmt.Errorf("rule %s: condition: %w", n.ID, err)
		}
		r.Condition = &rule.Condition{Expr: e}
	}
	obligations, err := buildObligations(n.Obligations)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", n.ID, err)
	}
	advice, err := buildAdvice(n.Advice)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", n.ID, err)
	}
	r.Obligations = obligations
	r.Advice = advice
	return r, nil
}

func buildObligations(nodes []obligationNode) ([]rule.ObligationExpression, error) {
	out := make([]rule.ObligationExpression, 0, len(nodes))
	for _, n := range nodes {
		effect, err := parseEffect(n.FulfillOn)
		if err != nil {
			return nil, fmt.Errorf("obligation %s: %w", n.ID, err)
		}
		assignments, err := buildAssignments(n.Assignments)
		if err != nil {
			return nil, fmt.Errorf("obligation %s: %w", n.ID, err)
		}
		out = append(out, rule.ObligationExpression{ID: n.ID, FulfillOn: effect, Assignments: assignments})
	}
	return out, nil
}

func buildAdvice(nodes []adviceNode) ([]rule.AdviceExpression, error) {
	out := make([]rule.AdviceExpression, 0, len(nodes))
	for _, n := range nodes {
		effect, err := parseEffect(n.AppliesTo)
		if err != nil {
			return nil, fmt.Errorf("advice %s: %w", n.ID, err)
		}
		assignments, err := buildAssignments(n.Assignments)
		if err != nil {
			return nil, fmt.Errorf("advice %s: %w", n.ID, err)
		}
		out = append(out, rule.AdviceExpression{ID: n.ID, AppliesTo: effect, Assignments: assignments})
	}
	return out, nil
}

func buildAssignments(nodes []assignmentNode) ([]rule.AttributeAssignment, error) {
	out := make([]rule.AttributeAssignment, 0, len(nodes))
	for _, n := range nodes {
		e, err := buildExpr(n.Expr)
		if err != nil {
			return nil, fmt.Errorf("assignment %s: %w", n.AttributeID, err)
		}
		out = append(out, rule.AttributeAssignment{AttributeID: n.AttributeID, Category: n.Category, Expr: e})
	}
	return out, nil
}

func buildTarget(n *targetNode) (target.Target, error) {
	if n == nil {
		return target.Target{}, nil
	}
	t := target.Target{}
	for _, anyOf := range n.AnyOf {
		a := target.AnyOf{}
		for _, allOf := range anyOf.AllOf {
			all := target.AllOf{}
			for _, m := range allOf.Match {
				match, err := buildMatch(m)
				if err != nil {
					return target.Target{}, err
				}
				all.Matches = append(all.Matches, match)
			}
			a.AllOfs = append(a.AllOfs, all)
		}
		t.AnyOfs = append(t.AnyOfs, a)
	}
	return t, nil
}

func buildMatch(n matchNode) (target.Match, error) {
	fn, ok := expr.Global.Lookup(n.Function)
	if !ok {
		return target.Match{}, fmt.Errorf("unknown match function %q", n.Function)
	}
	literal, err := buildExpr(n.Literal)
	if err != nil {
		return target.Match{}, fmt.Errorf("match literal: %w", err)
	}
	input, err := buildExpr(n.Input)
	if err != nil {
		return target.Match{}, fmt.Errorf("match input: %w", err)
	}
	return target.Match{Fn: fn, Literal: literal, Input: input}, nil
}

func buildExpr(n exprNode) (expr.Expression, error) {
	switch {
	case n.Literal != nil:
		dt := parseDatatype(n.Literal.Datatype)
		v, err := value.Parse(dt, n.Literal.Value)
		if err != nil {
			return nil, fmt.Errorf("literal: %w", err)
		}
		return &expr.Literal{V: v}, nil
	case n.Designator != nil:
		d := n.Designator
		return &expr.Designator{
			Fqn:           value.AttributeFqn{Category: d.Category, ID: d.ID, Issuer: d.Issuer},
			Datatype:      parseDatatype(d.Datatype),
			MustBePresent: d.MustBePresent,
		}, nil
	case n.Selector != nil:
		s := n.Selector
		return &expr.Selector{
			Category:          s.Category,
			Path:              s.Path,
			Datatype:          parseDatatype(s.Datatype),
			MustBePresent:     s.MustBePresent,
			ContextSelectorID: s.ContextSelectorID,
		}, nil
	case n.Variable != nil:
		return &expr.VariableRef{ID: n.Variable.ID, Datatype: parseDatatype(n.Variable.Datatype), IsBagValued: n.Variable.IsBagValued}, nil
	case n.Apply != nil:
		fn, ok := expr.Global.Lookup(n.Apply.Function)
		if !ok {
			return nil, fmt.Errorf("apply: unknown function %q", n.Apply.Function)
		}
		args := make([]expr.Expression, 0, len(n.Apply.Args))
		for _, a := range n.Apply.Args {
			ae, err := buildExpr(a)
			if err != nil {
				return nil, fmt.Errorf("apply %s: %w", n.Apply.Function, err)
			}
			args = append(args, ae)
		}
		return expr.NewApply(fn, args)
	default:
		return nil, fmt.Errorf("expression node has no recognized shape")
	}
}

func parseEffect(s string) (decision.Effect, error) {
	switch s {
	case "Permit":
		return decision.Permit, nil
	case "Deny":
		return decision.Deny, nil
	default:
		return "", fmt.Errorf("invalid Effect %q (want Permit or Deny)", s)
	}
}

// shortDatatypes maps the compact aliases this file format accepts to the
// full XACML datatype URIs; any other string is passed through as a literal
// Datatype URI, so a policy author may always spell one out in full.
var shortDatatypes = map[string]value.Datatype{
	"string":            value.TypeString,
	"boolean":           value.TypeBoolean,
	"integer":           value.TypeInteger,
	"double":            value.TypeDouble,
	"date":              value.TypeDate,
	"time":              value.TypeTime,
	"dateTime":          value.TypeDateTime,
	"dayTimeDuration":   value.TypeDayTimeDuration,
	"yearMonthDuration": value.TypeYearMonthDuration,
	"anyURI":            value.TypeAnyURI,
	"hexBinary":         value.TypeHexBinary,
	"base64Binary":      value.TypeBase64Binary,
	"x500Name":          value.TypeX500Name,
	"rfc822Name":        value.TypeRFC822Name,
	"ipAddress":         value.TypeIPAddress,
	"dnsName":           value.TypeDNSName,
}

func parseDatatype(s string) value.Datatype {
	if dt, ok := shortDatatypes[s]; ok {
		return dt
	}
	return value.Datatype(s)
}

// Package evalctx implements EvaluationContext: the per-request state a
// single IndividualDecisionRequest evaluation is confined to (spec.md
// §4.I). It satisfies expr.Context so Expression nodes resolve designators,
// selectors, and variables against it.
package evalctx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lattice-abac/pdp/internal/domain/expr"
	"github.com/lattice-abac/pdp/internal/domain/pip"
	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

// designatorKey is the memoization/lookup key for a resolved attribute:
// identity plus the datatype it was requested as, since the same AttributeId
// may legitimately be requested under different datatypes by different
// expressions (and a datatype mismatch is itself an Indeterminate).
type designatorKey struct {
	fqn value.AttributeFqn
	dt  value.Datatype
}

// Content is the parsed structured content ("XML Content node" in the
// spec's vocabulary) attached to one request Category, consulted by
// AttributeSelector. This implementation treats it as a flat JSON-like
// path lookup table rather than a full XPath engine (spec.md Open
// Question, recorded in DESIGN.md).
type Content struct {
	Lookup func(path string) ([]string, bool)
}

// Snapshot is the PDP-issued environment attribute set captured once per
// evaluate() call so current-time/current-date/current-dateTime agree
// with each other (spec.md §4.I).
type Snapshot struct {
	Now time.Time
}

// Clock abstracts time so callers can inject a fixed Snapshot in tests.
type Clock interface{ Now() time.Time }

// Context is the concrete EvaluationContext. One Context is created per
// IndividualDecisionRequest and discarded after; it is never shared across
// evaluations or goroutines (spec.md §5).
type Context struct {
	strictIssuerMatch bool
	namedAttributes   map[value.AttributeFqn]value.Bag
	content           map[string]Content
	providers         []pip.Provider
	variables         map[string]expr.Expression
	snapshot          Snapshot
	deadline          time.Time
	hasDeadline       bool
	done              chan struct{}

	mu              sync.Mutex
	designatorCache map[designatorKey]value.Bag
	variableCache   map[string]expr.Result
	consumed        []value.AttributeFqn
}

// Option configures a new Context.
type Option func(*Context)

// WithStrictIssuerMatch requires an exact Issuer match on every designator
// lookup rather than treating a missing-issuer designator as a wildcard.
func WithStrictIssuerMatch(strict bool) Option {
	return func(c *Context) { c.strictIssuerMatch = strict }
}

// WithContent attaches parsed Content for the named category.
func WithContent(category string, content Content) Option {
	return func(c *Context) { c.content[category] = content }
}

// WithProviders registers attribute providers in the dependency order
// pip.OrderProviders produced.
func WithProviders(providers []pip.Provider) Option {
	return func(c *Context) { c.providers = providers }
}

// WithVariables seeds the VariableDefinition table in effect outside any
// PushVariables scope. Nothing fills it from the policy tree: Policy.Evaluate
// swaps in each Policy's own definitions through PushVariables.
func WithVariables(vars map[string]expr.Expression) Option {
	return func(c *Context) { c.variables = vars }
}

// WithDeadline bounds evaluation; Done() closes and further Apply/Condition
// evaluation reports Indeterminate(processing-error) once exceeded.
func WithDeadline(d time.Time) Option {
	return func(c *Context) { c.deadline = d; c.hasDeadline = true }
}

// New builds a Context seeded with the request's own attributes and the
// given environment Snapshot.
func New(namedAttributes map[value.AttributeFqn]value.Bag, snapshot Snapshot, opts ...Option) *Context {
	c := &Context{
		namedAttributes: namedAttributes,
		content:         make(map[string]Content),
		snapshot:        snapshot,
		designatorCache: make(map[designatorKey]value.Bag),
		variableCache:   make(map[string]expr.Result),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hasDeadline {
		go func() {
			timer := time.NewTimer(time.Until(c.deadline))
			defer timer.Stop()
			<-timer.C
			close(c.done)
		}()
	}
	return c
}

func (c *Context) Deadline() (time.Time, bool) { return c.deadline, c.hasDeadline }
func (c *Context) Done() <-chan struct{}       { return c.done }

// Consumed returns the set of AttributeFqns actually resolved during this
// evaluation, supporting "IncludedInResult" diagnostics (spec.md §4.I).
func (c *Context) Consumed() []value.AttributeFqn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]value.AttributeFqn, len(c.consumed))
	copy(out, c.consumed)
	return out
}

// ResolveDesignator implements expr.Context per spec.md §4.I's four-step
// algorithm: cache, request attributes, registered providers, then
// mustBePresent-gated empty bag.
func (c *Context) ResolveDesignator(fqn value.AttributeFqn, dt value.Datatype, mustBePresent bool) (value.Bag, error) {
	key := designatorKey{fqn: fqn, dt: dt}

	c.mu.Lock()
	if b, ok := c.designatorCache[key]; ok {
		c.mu.Unlock()
		return b, bagErr(b, mustBePresent)
	}
	c.mu.Unlock()

	if b, ok := c.lookupNamed(fqn, dt); ok {
		c.remember(key, fqn, b)
		return b, bagErr(b, mustBePresent)
	}

	if b, ok, err := c.lookupProviders(fqn, dt); err != nil {
		return value.Bag{}, err
	} else if ok {
		c.remember(key, fqn, b)
		return b, bagErr(b, mustBePresent)
	}

	empty := value.EmptyBag(dt)
	c.remember(key, fqn, empty)
	if mustBePresent {
		return empty, missingAttributeError(fqn)
	}
	return empty, nil
}

func missingAttributeError(fqn value.AttributeFqn) error {
	return expr.NewIndeterminate(status.MissingAttribute, fmt.Sprintf("missing required attribute %s/%s", fqn.Category, fqn.ID))
}

func bagErr(b value.Bag, mustBePresent bool) error {
	if mustBePresent && b.IsEmpty() {
		return expr.NewIndeterminate(status.MissingAttribute, "missing required attribute: resolved bag is empty")
	}
	return nil
}

func (c *Context) remember(key designatorKey, fqn value.AttributeFqn, b value.Bag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.designatorCache[key] = b
	c.consumed = append(c.consumed, fqn)
}

func (c *Context) lookupNamed(fqn value.AttributeFqn, dt value.Datatype) (value.Bag, bool) {
	for candidate, bag := range c.namedAttributes {
		if candidate.Category != fqn.Category || candidate.ID != fqn.ID {
			continue
		}
		if fqn.Matches(candidate, c.strictIssuerMatch) {
			if bag.Type != dt && !bag.IsEmpty() {
				continue
			}
			return bag, true
		}
	}
	return value.Bag{}, false
}

func (c *Context) lookupProviders(fqn value.AttributeFqn, dt value.Datatype) (value.Bag, bool, error) {
	d := pip.Designator{Category: fqn.Category, ID: fqn.ID, Datatype: dt}
	for _, p := range c.providers {
		covered := false
		for _, provided := range p.Provides() {
			if provided.Category == d.Category && provided.ID == d.ID && provided.Datatype == d.Datatype {
				covered = true
				break
			}
		}
		if !covered {
			continue
		}
		b, err := p.Resolve(context.Background(), d, func(want pip.Designator) (value.Bag, error) {
			return c.ResolveDesignator(value.AttributeFqn{Category: want.Category, ID: want.ID}, want.Datatype, false)
		})
		if err != nil {
			return value.Bag{}, false, expr.NewIndeterminate(status.MissingAttribute, fmt.Sprintf("provider %s: %v", p.Name(), err))
		}
		if !b.IsEmpty() {
			return b, true, nil
		}
	}
	return value.Bag{}, false, nil
}

// ResolveSelector implements expr.Context. This implementation supports a
// restricted path-lookup form of Content rather than full XPath (spec.md
// Open Question; see DESIGN.md).
func (c *Context) ResolveSelector(category, path string, dt value.Datatype, mustBePresent bool, contextSelectorID string) (value.Bag, error) {
	content, ok := c.content[category]
	if !ok || content.Lookup == nil {
		if mustBePresent {
			return value.Bag{}, expr.NewIndeterminate(status.MissingAttribute, fmt.Sprintf("no content registered for category %s", category))
		}
		return value.EmptyBag(dt), nil
	}
	lexicals, found := content.Lookup(path)
	if !found || len(lexicals) == 0 {
		if mustBePresent {
			return value.Bag{}, expr.NewIndeterminate(status.MissingAttribute, fmt.Sprintf("selector %q matched nothing in category %s", path, category))
		}
		return value.EmptyBag(dt), nil
	}
	values := make([]value.AttributeValue, 0, len(lexicals))
	for _, lex := range lexicals {
		v, err := value.Parse(dt, lex)
		if err != nil {
			return value.Bag{}, expr.NewIndeterminate(status.SyntaxError, err.Error())
		}
		values = append(values, v)
	}
	return value.NewBag(dt, values...), nil
}

// PushVariables implements expr.VariableScope. The variable cache is reset
// along with the table itself: an id memoized under the previous scope's
// definitions would otherwise shadow this Policy's own VariableReference
// of the same name.
func (c *Context) PushVariables(vars map[string]expr.Expression) (pop func()) {
	c.mu.Lock()
	prevVars, prevCache := c.variables, c.variableCache
	c.variables = vars
	c.variableCache = make(map[string]expr.Result)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.variables, c.variableCache = prevVars, prevCache
		c.mu.Unlock()
	}
}

// ResolveVariable implements expr.Context: evaluate-once, memoize-forever
// within this Context (spec.md §4.G).
func (c *Context) ResolveVariable(id string) (expr.Result, error) {
	c.mu.Lock()
	if r, ok := c.variableCache[id]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	definition, ok := c.variables[id]
	if !ok {
		return expr.Result{}, expr.NewIndeterminate(status.ProcessingError, fmt.Sprintf("undefined variable %q", id))
	}
	r, err := definition.Evaluate(c)
	if err != nil {
		return expr.Result{}, err
	}
	c.mu.Lock()
	c.variableCache[id] = r
	c.mu.Unlock()
	return r, nil
}

// Environment attribute FQNs the PDP itself issues (spec.md §4.I).
var (
	FqnCurrentTime     = value.AttributeFqn{Category: "environment", ID: "urn:oasis:names:tc:xacml:1.0:environment:current-time"}
	FqnCurrentDate     = value.AttributeFqn{Category: "environment", ID: "urn:oasis:names:tc:xacml:1.0:environment:current-date"}
	FqnCurrentDateTime = value.AttributeFqn{Category: "environment", ID: "urn:oasis:names:tc:xacml:1.0:environment:current-dateTime"}
)

// EnvironmentAttributes derives current-time/current-date/current-dateTime
// from a single Snapshot so the three values agree with one another.
func EnvironmentAttributes(s Snapshot) map[value.AttributeFqn]value.Bag {
	t, _ := value.Parse(value.TypeTime, s.Now.Format("15:04:05"))
	d, _ := value.Parse(value.TypeDate, s.Now.Format("2006-01-02"))
	dt, _ := value.Parse(value.TypeDateTime, s.Now.Format(time.RFC3339Nano))
	return map[value.AttributeFqn]value.Bag{
		FqnCurrentTime:     value.NewBag(value.TypeTime, t),
		FqnCurrentDate:     value.NewBag(value.TypeDate, d),
		FqnCurrentDateTime: value.NewBag(value.TypeDateTime, dt),
	}
}

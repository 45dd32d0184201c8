// Package service contains the PDP application engine: the orchestration
// layer that wires the request preprocessor, evaluation context, policy
// tree, and decision cache into one evaluate() call (spec.md §4.K).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-abac/pdp/internal/domain/cache"
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/evalctx"
	"github.com/lattice-abac/pdp/internal/domain/pip"
	"github.com/lattice-abac/pdp/internal/domain/policy"
	"github.com/lattice-abac/pdp/internal/domain/request"
	"github.com/lattice-abac/pdp/internal/domain/resolver"
	"github.com/lattice-abac/pdp/internal/domain/response"
	"github.com/lattice-abac/pdp/internal/domain/status"
	"github.com/lattice-abac/pdp/internal/domain/value"
	"github.com/lattice-abac/pdp/internal/metrics"
	"github.com/lattice-abac/pdp/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Clock abstracts time.Now so PDPEngine tests can inject a fixed instant.
type Clock func() time.Time

// PostProcessor reshapes the raw per-IndividualDecisionRequest results
// before they're returned, e.g. folding a Multiple-Decision fan-out into
// one combined-decision Result (spec.md §4.K step 4).
type PostProcessor interface {
	// SupportsCombinedDecision reports whether Process can honor a
	// CombinedDecision request; gates request.Capabilities.
	SupportsCombinedDecision() bool
	Process(results []response.Result, combinedDecisionRequested bool) []response.Result
}

// IdentityPostProcessor returns results unchanged; it never claims to
// support CombinedDecision folding.
type IdentityPostProcessor struct{}

func (IdentityPostProcessor) SupportsCombinedDecision() bool { return false }
func (IdentityPostProcessor) Process(results []response.Result, _ bool) []response.Result {
	return results
}

// PDPEngine is the core decision-point engine: given a built root policy
// Decidable, it preprocesses a Request, evaluates each resulting
// IndividualDecisionRequest against the tree (optionally through a decision
// cache), and post-processes the results into a Response.
type PDPEngine struct {
	root          policy.Decidable
	resolver      *resolver.Resolver
	providers     []pip.Provider
	decisionCache cache.Cache
	postProcessor PostProcessor
	capabilities  request.Capabilities
	strictIssuer  bool
	clock         Clock
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// Option configures a PDPEngine at construction.
type Option func(*PDPEngine)

// WithDecisionCache attaches a decision cache; evaluate() consults it
// before running the tree and populates it with fresh results.
func WithDecisionCache(c cache.Cache) Option { return func(e *PDPEngine) { e.decisionCache = c } }

// WithPostProcessor overrides the default identity PostProcessor.
func WithPostProcessor(p PostProcessor) Option { return func(e *PDPEngine) { e.postProcessor = p } }

// WithProviders registers Attribute Providers in dependency order
// (spec.md §4.M); construction fails (see NewPDPEngine) if they contain a
// cycle.
func WithProviders(providers []pip.Provider) Option {
	return func(e *PDPEngine) { e.providers = providers }
}

// WithStrictIssuerMatch requires exact Issuer matches on every designator
// lookup across every evaluation this engine runs.
func WithStrictIssuerMatch(strict bool) Option {
	return func(e *PDPEngine) { e.strictIssuer = strict }
}

// WithClock overrides time.Now, e.g. for deterministic tests.
func WithClock(c Clock) Option { return func(e *PDPEngine) { e.clock = c } }

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option { return func(e *PDPEngine) { e.logger = l } }

// WithMetrics attaches Prometheus instrumentation; Evaluate records
// decisions_total, evaluation_duration_seconds, and cache_lookups_total
// against it when set.
func WithMetrics(m *metrics.Metrics) Option { return func(e *PDPEngine) { e.metrics = m } }

// NewPDPEngine builds a PDPEngine rooted at root. maxDepth bounds the
// resolver's policy-reference depth (spec.md §4.H; 0 defaults to 10).
func NewPDPEngine(root policy.Decidable, refResolver resolver.Provider, maxDepth int, opts ...Option) (*PDPEngine, error) {
	e := &PDPEngine{
		root:          root,
		resolver:      resolver.New(refResolver, maxDepth),
		postProcessor: IdentityPostProcessor{},
		clock:         time.Now,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.resolver.ValidateTree(root); err != nil {
		return nil, fmt.Errorf("pdp engine: %w", err)
	}
	ordered, err := pip.OrderProviders(e.providers)
	if err != nil {
		return nil, fmt.Errorf("pdp engine: %w", err)
	}
	e.providers = ordered
	e.capabilities = request.Capabilities{
		TracksApplicablePolicies: true,
		SupportsCombinedDecision: e.postProcessor.SupportsCombinedDecision(),
	}
	return e, nil
}

// Evaluate implements spec.md §4.K: preprocess, build the PDP-issued
// attribute snapshot, consult the decision cache, evaluate misses, and
// post-process into a Response. ctx bounds the whole call; an expired
// deadline surfaces as an Indeterminate(processing-error) Result rather
// than an error return, matching how any other mid-evaluation failure is
// reported.
func (e *PDPEngine) Evaluate(ctx context.Context, req request.Request) (response.Response, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pdp.Evaluate")
	defer span.End()

	requestID := uuid.New().String()
	span.SetAttributes(attribute.String("pdp.request_id", requestID))
	start := e.clock()

	individuals, err := request.Preprocess(req, e.capabilities)
	if err != nil {
		e.logger.WarnContext(ctx, "request preprocessing rejected", "request_id", requestID, "error", err)
		return response.IndeterminateResponse(decision.IndeterminateResult(
			status.ExtendedDP, status.New(status.SyntaxError, err.Error()),
		)), nil
	}

	snapshot := evalctx.Snapshot{Now: e.clock()}
	results := make([]response.Result, len(individuals))

	misses := individuals
	missIdx := make([]int, len(individuals))
	for i := range missIdx {
		missIdx[i] = i
	}

	var keys []cache.Key
	if e.decisionCache != nil {
		keys = make([]cache.Key, len(individuals))
		for i, ind := range individuals {
			keys[i] = cache.Fingerprint(ind)
		}
		cached, err := e.decisionCache.GetAll(ctx, keys)
		if err != nil {
			e.logger.WarnContext(ctx, "decision cache getAll failed; evaluating uncached", "request_id", requestID, "error", err)
		} else {
			misses = nil
			missIdx = nil
			for i, k := range keys {
				if hit := cached[k]; hit != nil {
					results[i] = *hit
					if e.metrics != nil {
						e.metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
					}
					continue
				}
				if e.metrics != nil {
					e.metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
				}
				misses = append(misses, individuals[i])
				missIdx = append(missIdx, i)
			}
		}
	}

	var deadline time.Time
	hasDeadline := false
	if d, ok := ctx.Deadline(); ok {
		deadline, hasDeadline = d, true
	}

	toPut := make(map[cache.Key]response.Result, len(misses))
	for n, ind := range misses {
		i := missIdx[n]
		res := e.evaluateOne(ctx, ind, snapshot, deadline, hasDeadline)
		results[i] = res
		if e.decisionCache != nil {
			toPut[keys[i]] = res
		}
	}
	if e.decisionCache != nil && len(toPut) > 0 {
		if err := e.decisionCache.PutAll(ctx, toPut); err != nil {
			e.logger.WarnContext(ctx, "decision cache putAll failed", "request_id", requestID, "error", err)
		}
	}

	results = e.postProcessor.Process(results, req.CombinedDecision)

	if e.metrics != nil {
		for _, r := range results {
			e.metrics.DecisionsTotal.WithLabelValues(string(r.Decision)).Inc()
		}
		e.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}

	e.logger.DebugContext(ctx, "pdp evaluation completed",
		"request_id", requestID,
		"individual_count", len(individuals),
		"cache_misses", len(misses),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return response.Response{Results: results}, nil
}

func (e *PDPEngine) evaluateOne(ctx context.Context, ind request.IndividualDecisionRequest, snapshot evalctx.Snapshot, deadline time.Time, hasDeadline bool) response.Result {
	_, span := telemetry.Tracer().Start(ctx, "pdp.evaluateOne")
	defer span.End()

	if ctx.Err() != nil {
		return response.Result{Result: decision.IndeterminateResult(
			status.ExtendedDP, status.New(status.ProcessingError, "evaluation deadline exceeded"),
		)}
	}

	named := buildNamedAttributes(ind)
	for fqn, bag := range evalctx.EnvironmentAttributes(snapshot) {
		named[fqn] = bag
	}

	opts := []evalctx.Option{
		evalctx.WithStrictIssuerMatch(e.strictIssuer),
		evalctx.WithProviders(e.providers),
	}
	for name, cat := range ind.Categories {
		if cat.Content != nil {
			if c, ok := cat.Content.(evalctx.Content); ok {
				opts = append(opts, evalctx.WithContent(name, c))
			}
		}
	}
	if hasDeadline {
		opts = append(opts, evalctx.WithDeadline(deadline))
	}

	ec := evalctx.New(named, snapshot, opts...)

	rootDecidable := e.root
	eval := rootDecidable.Evaluate(ec)

	res := response.Result{
		Result:      eval.Result,
		Obligations: eval.Obligations,
		Advice:      eval.Advice,
	}
	if ind.ReturnPolicyIDList {
		res.PolicyIdentifiers = eval.PolicyIdentifiers
	}
	span.SetAttributes(attribute.String("pdp.decision", string(res.Decision)))
	return res
}

func buildNamedAttributes(ind request.IndividualDecisionRequest) map[value.AttributeFqn]value.Bag {
	named := make(map[value.AttributeFqn]value.Bag)
	for _, cat := range ind.Categories {
		for _, a := range cat.Attrs {
			if len(a.Values) == 0 {
				continue
			}
			existing, ok := named[a.FQN]
			if !ok {
				named[a.FQN] = value.NewBag(a.Values[0].Type(), a.Values...)
				continue
			}
			named[a.FQN] = value.NewBag(existing.Type, append(append([]value.AttributeValue{}, existing.Values...), a.Values...)...)
		}
	}
	return named
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	celpip "github.com/lattice-abac/pdp/internal/adapter/outbound/cel"
	"github.com/lattice-abac/pdp/internal/adapter/outbound/memorycache"
	"github.com/lattice-abac/pdp/internal/adapter/outbound/policyfile"
	"github.com/lattice-abac/pdp/internal/adapter/outbound/sqlitecache"
	"github.com/lattice-abac/pdp/internal/adapter/outbound/xmlcontent"
	"github.com/lattice-abac/pdp/internal/config"
	"github.com/lattice-abac/pdp/internal/domain/cache"
	"github.com/lattice-abac/pdp/internal/domain/pip"
	"github.com/lattice-abac/pdp/internal/domain/policy"
	"github.com/lattice-abac/pdp/internal/domain/request"
	"github.com/lattice-abac/pdp/internal/domain/resolver"
	"github.com/lattice-abac/pdp/internal/domain/value"
	"github.com/lattice-abac/pdp/internal/metrics"
	"github.com/lattice-abac/pdp/internal/service"
	"github.com/lattice-abac/pdp/internal/telemetry"

	_ "github.com/lattice-abac/pdp/internal/domain/function"
)

var (
	evalPolicyRoot  string
	evalPolicyDir   string
	evalRequestFile string
	evalTrace       bool
	evalMetrics     bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one request against a loaded policy",
	Long: `Loads a root Policy/PolicySet from --policy (a policyfile YAML document),
evaluates the individual decision request in --request (JSON, matching the
request.Request shape) against it, and prints the resulting Response as JSON.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalPolicyRoot, "policy", "", "path to the root policy YAML document (overrides policy.root_file)")
	evaluateCmd.Flags().StringVar(&evalPolicyDir, "policy-dir", "", "overrides policy.dir; no policies are loaded from it")
	evaluateCmd.Flags().StringVar(&evalRequestFile, "request", "", "path to a JSON-encoded request.Request document (required)")
	evaluateCmd.Flags().BoolVar(&evalTrace, "trace", false, "print a trace span for the evaluation to stderr")
	evaluateCmd.Flags().BoolVar(&evalMetrics, "metrics", false, "print the Prometheus exposition for this run to stderr")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}
	if evalPolicyRoot != "" {
		cfg.Policy.RootFile = evalPolicyRoot
	}
	if evalPolicyDir != "" {
		cfg.Policy.Dir = evalPolicyDir
	}
	if evalRequestFile == "" {
		fmt.Fprintln(os.Stderr, "pdpctl evaluate: --request is required")
		os.Exit(exitInvalidRequest)
	}

	var tp *telemetry.Provider
	if evalTrace {
		tp, err = telemetry.NewStdout(os.Stderr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternalError)
		}
	}

	reg := prometheus.NewRegistry()
	metricsCollector := metrics.New(reg)

	engine, err := buildEngine(cfg, metricsCollector)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInternalError)
	}

	reqBytes, err := os.ReadFile(evalRequestFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdpctl evaluate: reading request file: %v\n", err)
		os.Exit(exitInvalidRequest)
	}
	var req request.Request
	if err := json.Unmarshal(reqBytes, &req); err != nil {
		fmt.Fprintf(os.Stderr, "pdpctl evaluate: parsing request: %v\n", err)
		os.Exit(exitInvalidRequest)
	}
	if cfg.Engine.XPathEnabled {
		if err := resolveXMLContent(&req); err != nil {
			fmt.Fprintf(os.Stderr, "pdpctl evaluate: parsing category content: %v\n", err)
			os.Exit(exitInvalidRequest)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := engine.Evaluate(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdpctl evaluate: %v\n", err)
		os.Exit(exitInternalError)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdpctl evaluate: encoding response: %v\n", err)
		os.Exit(exitInternalError)
	}
	fmt.Println(string(out))

	if evalMetrics {
		if err := writeMetrics(os.Stderr, reg); err != nil {
			fmt.Fprintf(os.Stderr, "pdpctl evaluate: encoding metrics: %v\n", err)
		}
	}
	if tp != nil {
		if err := tp.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "pdpctl evaluate: shutting down telemetry: %v\n", err)
		}
	}

	os.Exit(exitOK)
	return nil
}

// resolveXMLContent parses any category whose Content arrived as a raw XML
// string into an evalctx.Content AttributeSelector can walk, in place.
func resolveXMLContent(req *request.Request) error {
	for i, cat := range req.Categories {
		raw, ok := cat.Content.(string)
		if !ok || raw == "" {
			continue
		}
		content, err := xmlcontent.Parse([]byte(raw))
		if err != nil {
			return fmt.Errorf("category %s: %w", cat.Category, err)
		}
		req.Categories[i].Content = content
	}
	return nil
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// buildEngine wires a PDPEngine from cfg: loads the root policy, builds
// whichever decision cache backend is configured, and compiles any CEL
// derived-attribute providers.
func buildEngine(cfg *config.PDPConfig, m *metrics.Metrics) (*service.PDPEngine, error) {
	root, err := policyfile.LoadFile(cfg.Policy.RootFile)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	refResolver, err := resolver.NewStaticProvider([]policy.Decidable{root})
	if err != nil {
		return nil, fmt.Errorf("building policy resolver: %w", err)
	}

	opts := []service.Option{
		service.WithStrictIssuerMatch(cfg.Engine.StrictAttributeIssuerMatch),
		service.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))),
		service.WithMetrics(m),
	}

	decisionCache, err := buildDecisionCache(cfg)
	if err != nil {
		return nil, err
	}
	if decisionCache != nil {
		opts = append(opts, service.WithDecisionCache(decisionCache))
	}

	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	if len(providers) > 0 {
		opts = append(opts, service.WithProviders(providers))
	}

	engine, err := service.NewPDPEngine(root, refResolver, cfg.Engine.MaxPolicyReferenceDepth, opts...)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}
	return engine, nil
}

func buildDecisionCache(cfg *config.PDPConfig) (cache.Cache, error) {
	switch cfg.DecisionCache.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		ttl, err := time.ParseDuration(cfg.DecisionCache.TTL)
		if err != nil {
			return nil, fmt.Errorf("decision_cache.ttl: %w", err)
		}
		return memorycache.New(ttl, cfg.DecisionCache.MaxEntries), nil
	case "sqlite":
		ttl, err := time.ParseDuration(cfg.DecisionCache.TTL)
		if err != nil {
			return nil, fmt.Errorf("decision_cache.ttl: %w", err)
		}
		c, err := sqlitecache.Open(cfg.DecisionCache.SQLitePath, ttl)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite decision cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("decision_cache.backend: unknown %q", cfg.DecisionCache.Backend)
	}
}

func buildProviders(cfg *config.PDPConfig) ([]pip.Provider, error) {
	providers := make([]pip.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		defs := make([]celpip.DesignatorExpr, 0, len(pc.Designators))
		for _, d := range pc.Designators {
			vars := make([]celpip.Var, 0, len(d.Vars))
			for _, v := range d.Vars {
				vars = append(vars, celpip.Var{
					Ident: v.Ident,
					Designator: pip.Designator{
						Category: v.Category,
						ID:       v.ID,
						Datatype: value.Datatype(v.Datatype),
					},
				})
			}
			defs = append(defs, celpip.DesignatorExpr{
				Designator: pip.Designator{
					Category: d.Category,
					ID:       d.ID,
					Datatype: value.Datatype(d.Datatype),
				},
				Expression: d.Expression,
				Vars:       vars,
			})
		}
		p, err := celpip.NewProvider(pc.Name, defs)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

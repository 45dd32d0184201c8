// Package config provides the bootstrap configuration for the PDP.
//
// This holds only the engine's own bootstrap knobs (spec.md §6): reference
// depth limits, issuer-match strictness, the environment-attribute clock
// source, XPath selector support, the root policy location, and which
// registered extensions (attribute providers, decision cache backend) are
// active. It intentionally does not configure anything the engine's
// Non-goals exclude: no wire-format parsing, no authentication, no audit
// persistence.
package config

import (
	"fmt"
)

// PDPConfig is the top-level configuration for the PDP engine and its
// cmd/pdpctl CLI.
type PDPConfig struct {
	// Server holds an HTTP listen address; no pdpctl command reads it.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Policy locates the root policy/policy-set artifact to load.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// Engine holds the bootstrap configuration spec.md §6 names.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// DecisionCache configures the optional decision cache (spec.md §4.L).
	DecisionCache DecisionCacheConfig `yaml:"decision_cache" mapstructure:"decision_cache"`

	// Providers configures the attribute-provider registry (spec.md §4.M).
	Providers []ProviderConfig `yaml:"providers" mapstructure:"providers" validate:"omitempty,dive"`

	// LogLevel sets the minimum slog level. Valid values: "debug", "info",
	// "warn", "error". Defaults to "info" if empty.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// ServerConfig holds an HTTP listen address. pdpctl has no server
// subcommand, and the one-shot `pdpctl evaluate` command never reads this.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8443").
	// Defaults to "127.0.0.1:8443" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`
}

// PolicyConfig locates the root policy artifact.
type PolicyConfig struct {
	// RootFile is the path to the root Policy/PolicySet YAML document
	// (internal/adapter/outbound/policyfile format).
	RootFile string `yaml:"root_file" mapstructure:"root_file" validate:"required"`

	// Dir names a directory of referenced policies. pdpctl evaluate loads
	// no policies from it: references resolve only among the policies
	// defined in RootFile.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// EngineConfig holds the bootstrap configuration spec.md §6 names.
type EngineConfig struct {
	// MaxVariableReferenceDepth is validated and defaults to 10 if zero,
	// but pdpctl does not pass it to the engine, and <VariableReference>
	// evaluation applies no depth bound.
	MaxVariableReferenceDepth int `yaml:"max_variable_reference_depth" mapstructure:"max_variable_reference_depth" validate:"omitempty,min=1"`

	// MaxPolicyReferenceDepth bounds <PolicyIdReference>/<PolicySetIdReference>
	// recursion (spec.md §4.H). Defaults to 10 if zero.
	MaxPolicyReferenceDepth int `yaml:"max_policy_reference_depth" mapstructure:"max_policy_reference_depth" validate:"omitempty,min=1"`

	// StrictAttributeIssuerMatch requires exact Issuer matches on every
	// designator lookup (spec.md §4.B).
	StrictAttributeIssuerMatch bool `yaml:"strict_attribute_issuer_match" mapstructure:"strict_attribute_issuer_match"`

	// StandardEnvironmentAttributeSource names the source of current-date/
	// time/dateTime (spec.md §4.I). Valid values: "system", "fixed".
	// Defaults to "system". Validation requires FixedTime when it is
	// "fixed", but pdpctl does not pass either setting to the engine:
	// the engine always takes these attributes from time.Now.
	StandardEnvironmentAttributeSource string `yaml:"standard_environment_attribute_source" mapstructure:"standard_environment_attribute_source" validate:"omitempty,oneof=system fixed"`

	// FixedTime is an RFC 3339 instant, required by validation when
	// StandardEnvironmentAttributeSource is "fixed"; the engine does not
	// read it.
	FixedTime string `yaml:"fixed_time" mapstructure:"fixed_time" validate:"omitempty"`

	// XPathEnabled turns on AttributeSelector evaluation via the
	// encoding/xml-backed minimal path walk (spec.md Open Question; no
	// xpath-node-equal/xpath-node-match support regardless).
	XPathEnabled bool `yaml:"xpath_enabled" mapstructure:"xpath_enabled"`

	// CombinedDecisionSupported is not read by the engine. Whether
	// CombinedDecision=true requests are honored (spec.md §4.J) depends only
	// on the engine's PostProcessor; with the default one that pdpctl uses,
	// such requests are rejected at preprocessing whatever this is set to.
	CombinedDecisionSupported bool `yaml:"combined_decision_supported" mapstructure:"combined_decision_supported"`
}

// DecisionCacheConfig configures the optional decision cache (spec.md §4.L).
type DecisionCacheConfig struct {
	// Backend selects the cache implementation. Valid values: "none",
	// "memory", "sqlite". Defaults to "none".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=none memory sqlite"`

	// TTL is how long a cached decision remains valid (e.g., "5m").
	// Defaults to "5m" if not specified.
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty"`

	// MaxEntries bounds the in-memory backend's LRU size. Defaults to 10000.
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries" validate:"omitempty,min=1"`

	// SQLitePath is the database file path, required when Backend is
	// "sqlite".
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
}

// ProviderConfig configures one registered CEL-backed attribute provider
// (spec.md §4.M); the wiring from config to a live pip.Provider lives in
// cmd/pdpctl, not here, since that construction needs the live cel package.
type ProviderConfig struct {
	// Name identifies the provider in logs and error messages.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Designators lists each derived attribute this provider computes.
	Designators []ProviderDesignatorConfig `yaml:"designators" mapstructure:"designators" validate:"required,min=1,dive"`
}

// ProviderDesignatorConfig configures one CEL-derived designator.
type ProviderDesignatorConfig struct {
	Category   string                  `yaml:"category" mapstructure:"category" validate:"required"`
	ID         string                  `yaml:"id" mapstructure:"id" validate:"required"`
	Datatype   string                  `yaml:"datatype" mapstructure:"datatype" validate:"required"`
	Expression string                  `yaml:"expression" mapstructure:"expression" validate:"required"`
	Vars       []ProviderVariableConfig `yaml:"vars" mapstructure:"vars" validate:"omitempty,dive"`
}

// ProviderVariableConfig names one CEL activation variable after the
// designator it is sourced from.
type ProviderVariableConfig struct {
	Ident    string `yaml:"ident" mapstructure:"ident" validate:"required"`
	Category string `yaml:"category" mapstructure:"category" validate:"required"`
	ID       string `yaml:"id" mapstructure:"id" validate:"required"`
	Datatype string `yaml:"datatype" mapstructure:"datatype" validate:"required"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *PDPConfig) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8443"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Engine.MaxVariableReferenceDepth == 0 {
		c.Engine.MaxVariableReferenceDepth = 10
	}
	if c.Engine.MaxPolicyReferenceDepth == 0 {
		c.Engine.MaxPolicyReferenceDepth = 10
	}
	if c.Engine.StandardEnvironmentAttributeSource == "" {
		c.Engine.StandardEnvironmentAttributeSource = "system"
	}
	if c.DecisionCache.Backend == "" {
		c.DecisionCache.Backend = "none"
	}
	if c.DecisionCache.TTL == "" {
		c.DecisionCache.TTL = "5m"
	}
	if c.DecisionCache.MaxEntries == 0 {
		c.DecisionCache.MaxEntries = 10000
	}
}

// validateFixedTime cross-checks fields SetDefaults/struct tags can't express.
func (c *PDPConfig) validateFixedTime() error {
	if c.Engine.StandardEnvironmentAttributeSource == "fixed" && c.Engine.FixedTime == "" {
		return fmt.Errorf("engine.fixed_time is required when standard_environment_attribute_source is \"fixed\"")
	}
	return nil
}

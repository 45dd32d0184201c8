package config

import "testing"

func TestPDPConfigSetDefaults(t *testing.T) {
	t.Parallel()

	var cfg PDPConfig
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8443" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8443")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Engine.MaxVariableReferenceDepth != 10 {
		t.Errorf("MaxVariableReferenceDepth = %d, want 10", cfg.Engine.MaxVariableReferenceDepth)
	}
	if cfg.Engine.MaxPolicyReferenceDepth != 10 {
		t.Errorf("MaxPolicyReferenceDepth = %d, want 10", cfg.Engine.MaxPolicyReferenceDepth)
	}
	if cfg.Engine.StandardEnvironmentAttributeSource != "system" {
		t.Errorf("StandardEnvironmentAttributeSource = %q, want %q", cfg.Engine.StandardEnvironmentAttributeSource, "system")
	}
	if cfg.DecisionCache.Backend != "none" {
		t.Errorf("DecisionCache.Backend = %q, want %q", cfg.DecisionCache.Backend, "none")
	}
	if cfg.DecisionCache.TTL != "5m" {
		t.Errorf("DecisionCache.TTL = %q, want %q", cfg.DecisionCache.TTL, "5m")
	}
	if cfg.DecisionCache.MaxEntries != 10000 {
		t.Errorf("DecisionCache.MaxEntries = %d, want 10000", cfg.DecisionCache.MaxEntries)
	}
}

func TestPDPConfigSetDefaultsPreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := PDPConfig{
		Server:   ServerConfig{HTTPAddr: ":9090"},
		LogLevel: "debug",
		Engine: EngineConfig{
			MaxVariableReferenceDepth: 5,
			MaxPolicyReferenceDepth:   3,
		},
		DecisionCache: DecisionCacheConfig{
			Backend:    "memory",
			TTL:        "1m",
			MaxEntries: 50,
		},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr overwritten: got %q", cfg.Server.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel overwritten: got %q", cfg.LogLevel)
	}
	if cfg.Engine.MaxVariableReferenceDepth != 5 {
		t.Errorf("MaxVariableReferenceDepth overwritten: got %d", cfg.Engine.MaxVariableReferenceDepth)
	}
	if cfg.Engine.MaxPolicyReferenceDepth != 3 {
		t.Errorf("MaxPolicyReferenceDepth overwritten: got %d", cfg.Engine.MaxPolicyReferenceDepth)
	}
	if cfg.DecisionCache.Backend != "memory" {
		t.Errorf("DecisionCache.Backend overwritten: got %q", cfg.DecisionCache.Backend)
	}
	if cfg.DecisionCache.TTL != "1m" {
		t.Errorf("DecisionCache.TTL overwritten: got %q", cfg.DecisionCache.TTL)
	}
	if cfg.DecisionCache.MaxEntries != 50 {
		t.Errorf("DecisionCache.MaxEntries overwritten: got %d", cfg.DecisionCache.MaxEntries)
	}
}

func TestPDPConfigValidateFixedTimeRequiresFixedTimeValue(t *testing.T) {
	t.Parallel()

	cfg := PDPConfig{
		Policy: PolicyConfig{RootFile: "root.yaml"},
		Engine: EngineConfig{StandardEnvironmentAttributeSource: "fixed"},
	}
	cfg.SetDefaults()

	if err := cfg.validateFixedTime(); err == nil {
		t.Fatalf("expected error when fixed source has no fixed_time")
	}

	cfg.Engine.FixedTime = "2026-01-01T00:00:00Z"
	if err := cfg.validateFixedTime(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

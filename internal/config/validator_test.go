package config

import (
	"strings"
	"testing"
)

func minimalValidConfig() *PDPConfig {
	return &PDPConfig{
		Policy: PolicyConfig{RootFile: "root.yaml", Dir: "."},
	}
}

func TestValidateValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidateMissingRootFile(t *testing.T) {
	t.Parallel()

	cfg := &PDPConfig{}
	cfg.SetDefaults()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing policy.root_file")
	}
	if !strings.Contains(err.Error(), "RootFile") {
		t.Errorf("error = %q, want to contain 'RootFile'", err.Error())
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.SetDefaults()
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log_level")
	}
	if !strings.Contains(err.Error(), "LogLevel") {
		t.Errorf("error = %q, want to contain 'LogLevel'", err.Error())
	}
}

func TestValidateInvalidDecisionCacheBackend(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.SetDefaults()
	cfg.DecisionCache.Backend = "redis"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for unsupported backend")
	}
	if !strings.Contains(err.Error(), "Backend") {
		t.Errorf("error = %q, want to contain 'Backend'", err.Error())
	}
}

func TestValidateSQLiteBackendRequiresPath(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.SetDefaults()
	cfg.DecisionCache.Backend = "sqlite"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for sqlite backend with no path")
	}

	cfg.DecisionCache.SQLitePath = "/tmp/decisions.db"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error once sqlite_path is set: %v", err)
	}
}

func TestValidateInvalidHTTPAddr(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.SetDefaults()
	cfg.Server.HTTPAddr = "not-a-host-port"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid http_addr")
	}
}

func TestValidateProviderDesignatorsRequireAtLeastOne(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.SetDefaults()
	cfg.Providers = []ProviderConfig{{Name: "tenure"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for provider with no designators")
	}
}

func TestValidateFixedTimeSource(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Engine.StandardEnvironmentAttributeSource = "fixed"
	cfg.SetDefaults()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error: fixed source with no fixed_time")
	}
	if !strings.Contains(err.Error(), "fixed_time") {
		t.Errorf("error = %q, want to contain 'fixed_time'", err.Error())
	}

	cfg.Engine.FixedTime = "2026-01-01T00:00:00Z"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error once fixed_time is set: %v", err)
	}
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, Viper looks for pdp.yaml/.yml in the
// current directory only (the engine is a library/CLI, not a daemon with a
// standard install-path search list).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("pdp")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("PDP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// bindNestedEnvKeys binds the PDPConfig keys most useful to override without
// editing the config file.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("policy.root_file")
	_ = viper.BindEnv("policy.dir")
	_ = viper.BindEnv("engine.strict_attribute_issuer_match")
	_ = viper.BindEnv("engine.xpath_enabled")
	_ = viper.BindEnv("decision_cache.backend")
	_ = viper.BindEnv("decision_cache.sqlite_path")
	_ = viper.BindEnv("log_level")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the PDPConfig.
func LoadConfig() (*PDPConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg PDPConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded,
// or empty if none was found (env vars + defaults only).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

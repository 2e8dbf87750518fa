package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Environment variables that override file-based configuration.
const (
	EnvConfigPath         = "WHYLABS_GUARDRAILS_CONFIG"
	EnvWhyLabsEndpoint    = "WHYLABS_ENDPOINT"
	EnvWhyLabsAPIKey      = "WHYLABS_API_KEY"
	EnvGuardrailsEndpoint = "GUARDRAILS_ENDPOINT"
	EnvGuardrailsAPIKey   = "GUARDRAILS_API_KEY"
	EnvGuardrailsLogProf  = "GUARDRAILS_LOG_PROFILE"
	EnvDefaultDatasetID   = "WHYLABS_DEFAULT_DATASET_ID"
	EnvTracerName         = "WHYLABS_TRACER_NAME"
	EnvTracerServiceName  = "WHYLABS_TRACER_SERVICE_NAME"
	EnvOtelServiceName    = "OTEL_SERVICE_NAME"
	defaultConfigDirName  = ".whylabs"
	defaultConfigFileName = "guardrails-config.yaml"
)

// DefaultConfigPath returns the default location of the configuration file,
// ~/.whylabs/guardrails-config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(defaultConfigDirName, defaultConfigFileName)
	}
	return filepath.Join(home, defaultConfigDirName, defaultConfigFileName)
}

// Load reads configuration from the file at path. Returns an error if the
// file does not exist or cannot be parsed.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadDefault resolves configuration in layers: the config file (path from
// WHYLABS_GUARDRAILS_CONFIG or the default location, skipped when absent),
// then environment-variable overrides for any field still unset, then the
// default trace backend endpoint.
func LoadDefault() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if cfg.WhyLabs.Endpoint == "" {
		cfg.WhyLabs.Endpoint = DefaultWhyLabsEndpoint
	}

	return cfg, nil
}

// applyEnvOverrides fills unset fields from the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvWhyLabsEndpoint); v != "" {
		cfg.WhyLabs.Endpoint = v
	}
	if v := os.Getenv(EnvWhyLabsAPIKey); v != "" {
		cfg.WhyLabs.APIKey = v
	}
	if v := os.Getenv(EnvGuardrailsEndpoint); v != "" {
		cfg.Guardrails.Endpoint = v
	}
	if v := os.Getenv(EnvGuardrailsAPIKey); v != "" {
		cfg.Guardrails.APIKey = v
	}
	if v := os.Getenv(EnvGuardrailsLogProf); v != "" {
		if parsed, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			cfg.Guardrails.LogProfile = parsed
		}
	}
}

// LoadDatasetID resolves the effective dataset id: the
// WHYLABS_DEFAULT_DATASET_ID environment variable wins over the supplied
// value.
func LoadDatasetID(datasetID string) string {
	if v := os.Getenv(EnvDefaultDatasetID); v != "" {
		return v
	}
	return datasetID
}

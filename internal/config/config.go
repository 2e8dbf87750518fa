package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
	"github.com/whylabs/openllmtelemetry/pkg/observability"
)

// DefaultWhyLabsEndpoint is the trace backend used when none is configured.
const DefaultWhyLabsEndpoint = "https://api.whylabsapp.com"

// Config holds the credentials and endpoints for the trace backend and the
// policy-evaluation service.
type Config struct {
	WhyLabs    WhyLabsConfig    `yaml:"whylabs" mapstructure:"whylabs"`
	Guardrails GuardrailsConfig `yaml:"guardrails" mapstructure:"guardrails"`
}

// WhyLabsConfig configures the trace export backend.
type WhyLabsConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
}

// GuardrailsConfig configures the policy-evaluation endpoint.
type GuardrailsConfig struct {
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	LogProfile bool          `yaml:"log_profile" mapstructure:"log_profile"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// IsPartial reports whether any required field is still unset.
func (c *Config) IsPartial() bool {
	return c.WhyLabs.Endpoint == "" ||
		c.WhyLabs.APIKey == "" ||
		c.Guardrails.Endpoint == "" ||
		c.Guardrails.APIKey == ""
}

// HasGuardrails reports whether a policy-evaluation endpoint is configured.
func (c *Config) HasGuardrails() bool {
	return c.Guardrails.Endpoint != "" && c.Guardrails.APIKey != ""
}

// EndpointConfig converts the guardrails section into a client endpoint
// configuration.
func (c *Config) EndpointConfig() guardrail.EndpointConfig {
	return guardrail.EndpointConfig{
		BaseURL:    c.Guardrails.Endpoint,
		APIKey:     c.Guardrails.APIKey,
		LogProfile: c.Guardrails.LogProfile,
		Timeout:    c.Guardrails.Timeout,
	}
}

// TracingConfig builds a tracing configuration that exports spans to the
// configured trace backend over OTLP/HTTP.
func (c *Config) TracingConfig(serviceName, applicationName, datasetID string, disableBatching, debug bool) observability.TracingConfig {
	endpoint := c.WhyLabs.Endpoint
	if endpoint == "" {
		endpoint = DefaultWhyLabsEndpoint
	}
	return observability.TracingConfig{
		Enabled:         true,
		Provider:        "http",
		Endpoint:        endpoint,
		APIKey:          c.WhyLabs.APIKey,
		ServiceName:     serviceName,
		ApplicationName: applicationName,
		DatasetID:       datasetID,
		SampleRate:      1.0,
		DisableBatching: disableBatching,
		Debug:           debug,
	}
}

// Write persists the configuration as YAML at path, creating parent
// directories as needed. API keys are written as-is; the file should be
// protected accordingly.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the configuration with API keys redacted so it is safe to
// log.
func (c *Config) String() string {
	return fmt.Sprintf("Config(whylabs.endpoint=%s, whylabs.api_key=%s, guardrails.endpoint=%s, guardrails.api_key=%s, guardrails.log_profile=%t)",
		c.WhyLabs.Endpoint, redactKey(c.WhyLabs.APIKey),
		c.Guardrails.Endpoint, redactKey(c.Guardrails.APIKey),
		c.Guardrails.LogProfile,
	)
}

func redactKey(key string) string {
	if key == "" {
		return ""
	}
	return "***key***"
}

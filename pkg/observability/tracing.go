package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"

	"github.com/whylabs/openllmtelemetry/pkg/version"
)

const (
	defaultBatchTimeout = 5 * time.Second
	defaultServiceName  = "openllmtelemetry-instrumented-service"
	tracesPath          = "/v1/traces"
)

// TracingConfig contains distributed tracing configuration. Supports OTLP
// over gRPC, OTLP over HTTP with API-key headers, and a no-op provider.
type TracingConfig struct {
	Enabled         bool    `yaml:"enabled" mapstructure:"enabled"`
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	Endpoint        string  `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	ServiceName     string  `yaml:"service_name" mapstructure:"service_name"`
	ApplicationName string  `yaml:"application_name" mapstructure:"application_name"`
	DatasetID       string  `yaml:"dataset_id" mapstructure:"dataset_id"`
	SampleRate      float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	DisableBatching bool    `yaml:"disable_batching" mapstructure:"disable_batching"`
	Debug           bool    `yaml:"debug" mapstructure:"debug"`
	TLSCertFile     string  `yaml:"tls_cert_file" mapstructure:"tls_cert_file"` // Client TLS certificate file
	TLSKeyFile      string  `yaml:"tls_key_file" mapstructure:"tls_key_file"`   // Client TLS key file
	InsecureMode    bool    `yaml:"insecure_mode" mapstructure:"insecure_mode"` // Disable TLS verification (unsafe)
}

// Validate validates the TracingConfig fields.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	validProviders := []string{"otlp", "http", "noop"}
	provider := strings.ToLower(c.Provider)
	isValid := false
	for _, valid := range validProviders {
		if provider == valid {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("invalid tracing provider: %s (must be one of: %s)", c.Provider, strings.Join(validProviders, ", "))
	}

	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return fmt.Errorf("invalid sample rate: %f (must be between 0.0 and 1.0)", c.SampleRate)
	}

	if provider != "noop" && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when tracing is enabled")
	}

	if provider == "http" && c.APIKey == "" {
		return fmt.Errorf("api key is required for the http tracing provider")
	}

	return nil
}

// TracingOption is a functional option for configuring tracing initialization.
type TracingOption func(*tracingOptions)

// tracingOptions holds configuration options for tracing initialization.
type tracingOptions struct {
	sampler      sdktrace.Sampler
	resource     *resource.Resource
	batchTimeout time.Duration
}

// WithSampler sets a custom sampler for the tracer provider.
func WithSampler(sampler sdktrace.Sampler) TracingOption {
	return func(o *tracingOptions) {
		o.sampler = sampler
	}
}

// WithResource sets a custom resource describing the traced service.
func WithResource(res *resource.Resource) TracingOption {
	return func(o *tracingOptions) {
		o.resource = res
	}
}

// WithBatchTimeout sets the maximum time between batch exports.
func WithBatchTimeout(timeout time.Duration) TracingOption {
	return func(o *tracingOptions) {
		o.batchTimeout = timeout
	}
}

// InitTracing initializes distributed tracing with the specified
// configuration and registers the resulting provider globally.
//
// Providers:
//   - "otlp": OTLP over gRPC with optional client TLS.
//   - "http": OTLP over HTTP to {endpoint}/v1/traces with X-API-Key and
//     X-WHYLABS-RESOURCE headers, for trace backends keyed by API key.
//   - "noop": a provider that records nothing.
//
// When cfg.Enabled is false, returns a no-op tracer provider.
func InitTracing(ctx context.Context, cfg TracingConfig, opts ...TracingOption) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, &TracingError{Code: ErrExporterConnection, Message: "invalid tracing configuration", Cause: err}
	}

	options := &tracingOptions{
		batchTimeout: defaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.sampler == nil {
		options.sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	if options.resource == nil {
		serviceName := cfg.ServiceName
		if serviceName == "" {
			serviceName = defaultServiceName
		}
		applicationName := cfg.ApplicationName
		if applicationName == "" {
			applicationName = "unknown-llm-app"
		}

		// Use resource.New to avoid schema URL conflicts when merging
		// resource.Default() and custom attributes with different schema
		// versions.
		res, err := resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version.Version),
				resourceApplicationName(applicationName),
				resourceID(cfg.DatasetID),
			),
			resource.WithFromEnv(),
			resource.WithTelemetrySDK(),
		)
		if err != nil {
			return nil, &TracingError{Code: ErrExporterConnection, Message: "failed to create resource", Cause: err}
		}
		options.resource = res
	}

	var exporter sdktrace.SpanExporter
	var err error

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case "otlp":
		otlpOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}

		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertFile, "")
			if err != nil {
				return nil, &TracingError{Code: ErrExporterConnection, Message: "failed to load TLS credentials", Cause: err}
			}
			otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(creds))
		} else if cfg.InsecureMode {
			otlpOpts = append(otlpOpts, otlptracegrpc.WithInsecure())
		} else {
			creds := credentials.NewTLS(nil)
			otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(creds))
		}

		exporter, err = otlptracegrpc.New(ctx, otlpOpts...)
		if err != nil {
			return nil, &TracingError{
				Code:    ErrExporterConnection,
				Message: fmt.Sprintf("failed to connect to exporter at %s", cfg.Endpoint),
				Cause:   err,
			}
		}

	case "http":
		httpOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(strings.TrimRight(cfg.Endpoint, "/") + tracesPath),
			otlptracehttp.WithHeaders(map[string]string{
				"X-API-Key":          cfg.APIKey,
				"X-WHYLABS-RESOURCE": cfg.DatasetID,
			}),
		}
		if cfg.InsecureMode {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}

		exporter, err = otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, &TracingError{
				Code:    ErrExporterConnection,
				Message: fmt.Sprintf("failed to connect to exporter at %s", cfg.Endpoint),
				Cause:   err,
			}
		}

	case "noop":
		return sdktrace.NewTracerProvider(), nil

	default:
		return nil, &TracingError{Code: ErrExporterConnection, Message: fmt.Sprintf("unsupported tracing provider: %s", cfg.Provider)}
	}

	if cfg.Debug {
		exporter = NewDebugSpanExporter(exporter)
	}

	var processor sdktrace.TracerProviderOption
	if cfg.DisableBatching {
		processor = sdktrace.WithSyncer(exporter)
	} else {
		processor = sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(options.batchTimeout),
		)
	}

	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithSampler(options.sampler),
		sdktrace.WithResource(options.resource),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// ShutdownTracing gracefully shuts down the tracer provider, flushing any
// pending spans. It should be called before application exit. The context
// timeout bounds how long to wait for in-flight exports.
func ShutdownTracing(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return &TracingError{Code: ErrShutdownTimeout, Message: "failed to shutdown tracer provider", Cause: err}
	}

	return nil
}

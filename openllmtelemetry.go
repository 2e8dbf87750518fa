// Package openllmtelemetry instruments LLM applications with policy
// evaluation ("guardrails") and distributed tracing. Instrument wires the
// configured trace backend and policy-evaluation endpoint into a Handle whose
// Bridge evaluates prompts and responses inside guardrail spans.
package openllmtelemetry

import (
	"context"
	"errors"
	"os"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/whylabs/openllmtelemetry/internal/config"
	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
	"github.com/whylabs/openllmtelemetry/pkg/observability"
)

const defaultTracerName = "openllmtelemetry"

// Handle bundles the instrumented tracer, the guardrail client, and the span
// bridge. Shutdown must be called before process exit to flush spans.
type Handle struct {
	Tracer trace.Tracer
	Client *guardrail.Client
	Bridge *observability.Bridge

	provider *sdktrace.TracerProvider
}

// Shutdown flushes pending spans and releases the tracer provider.
func (h *Handle) Shutdown(ctx context.Context) error {
	return observability.ShutdownTracing(ctx, h.provider)
}

// InstrumentOption is a functional option for Instrument.
type InstrumentOption func(*instrumentOptions)

type instrumentOptions struct {
	datasetID       string
	applicationName string
	serviceName     string
	tracerName      string
	disableBatching bool
	debug           bool
}

// WithDatasetID sets the dataset every evaluation and exported trace is
// attributed to. Overridden by WHYLABS_DEFAULT_DATASET_ID.
func WithDatasetID(id string) InstrumentOption {
	return func(o *instrumentOptions) { o.datasetID = id }
}

// WithApplicationName sets the application.name resource attribute.
func WithApplicationName(name string) InstrumentOption {
	return func(o *instrumentOptions) { o.applicationName = name }
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) InstrumentOption {
	return func(o *instrumentOptions) { o.serviceName = name }
}

// WithTracerName sets the instrumentation tracer name.
func WithTracerName(name string) InstrumentOption {
	return func(o *instrumentOptions) { o.tracerName = name }
}

// WithoutBatching exports spans synchronously instead of batching. Useful in
// short-lived processes and tests.
func WithoutBatching() InstrumentOption {
	return func(o *instrumentOptions) { o.disableBatching = true }
}

// WithDebug enables per-span export logging.
func WithDebug() InstrumentOption {
	return func(o *instrumentOptions) { o.debug = true }
}

// Instrument loads configuration from the config file and environment, sets
// up trace export to the configured backend, and returns a Handle for guarded
// evaluations.
//
// A dataset id is required, either via WithDatasetID or the
// WHYLABS_DEFAULT_DATASET_ID environment variable. The guardrail client and
// bridge are only present on the Handle when a policy-evaluation endpoint is
// configured; tracing alone works without one.
func Instrument(ctx context.Context, opts ...InstrumentOption) (*Handle, error) {
	o := &instrumentOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}

	datasetID := config.LoadDatasetID(o.datasetID)
	if datasetID == "" {
		return nil, errors.New("dataset id must be provided via WithDatasetID or WHYLABS_DEFAULT_DATASET_ID")
	}

	applicationName := o.applicationName
	if applicationName == "" {
		applicationName = os.Getenv(config.EnvOtelServiceName)
	}
	if applicationName == "" {
		applicationName = "unknown-llm-app"
	}
	serviceName := o.serviceName
	if serviceName == "" {
		serviceName = os.Getenv(config.EnvTracerServiceName)
	}
	tracerName := o.tracerName
	if tracerName == "" {
		tracerName = os.Getenv(config.EnvTracerName)
	}
	if tracerName == "" {
		tracerName = defaultTracerName
	}

	tracingCfg := cfg.TracingConfig(serviceName, applicationName, datasetID, o.disableBatching, o.debug)
	provider, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return nil, err
	}

	tracer := otel.Tracer(tracerName)
	handle := &Handle{
		Tracer:   tracer,
		provider: provider,
	}

	if cfg.HasGuardrails() {
		client, err := guardrail.NewClient(cfg.EndpointConfig())
		if err != nil {
			return nil, err
		}
		handle.Client = client
		handle.Bridge = observability.NewBridge(client, observability.WithTracer(tracer))
	}

	return handle, nil
}

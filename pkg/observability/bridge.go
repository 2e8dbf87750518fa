package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
)

// tracerName identifies this instrumentation library.
const tracerName = "github.com/whylabs/openllmtelemetry"

// Bridge orchestrates a single policy evaluation inside a tracing span: it
// opens (or borrows) a span, invokes the guardrail client, projects every
// verdict field onto span attributes, and guarantees span closure on every
// exit path.
//
// A Bridge holds no per-call state; concurrent evaluations are independent
// and each owns its own span.
type Bridge struct {
	client *guardrail.Client
	tracer trace.Tracer
	logger *slog.Logger
}

// BridgeOption is a functional option for configuring a Bridge.
type BridgeOption func(*Bridge)

// WithTracer sets the OpenTelemetry tracer used to open evaluation spans.
// Defaults to a tracer from the global provider.
func WithTracer(tracer trace.Tracer) BridgeOption {
	return func(b *Bridge) {
		b.tracer = tracer
	}
}

// WithLogger sets the structured logger for the bridge.
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge creates a Bridge over the given guardrail client.
func NewBridge(client *guardrail.Client, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer(tracerName)
	}
	return b
}

// Evaluate runs one policy evaluation inside a new span.
//
// The span is named "guardrails.response" when the request carries a model
// response and "guardrails.request" otherwise. A parent span is derived from
// ctx when one is active there (use trace.ContextWithSpan to supply an
// explicit parent). The span is ended exactly once on every exit path.
//
// On success the verdict is projected onto the span and returned. On failure
// the span is marked with guardrails.error = 1 and the original error is
// returned unchanged; the bridge never converts a failed evaluation into a
// default or permissive verdict.
func (b *Bridge) Evaluate(ctx context.Context, req guardrail.EvaluationRequest) (*guardrail.EvaluationVerdict, error) {
	name := SpanGuardrailRequest
	if req.HasResponse() {
		name = SpanGuardrailResponse
	}

	ctx, span := b.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(SpanTypeKey, SpanTypeGuardrails)),
	)
	defer span.End()

	return b.evaluate(ctx, span, req)
}

// EvaluateSpan runs one policy evaluation against a caller-owned span instead
// of creating one. Attribute projection and error marking behave exactly as
// in Evaluate, but the span's lifecycle stays with the caller: it is not
// ended here.
func (b *Bridge) EvaluateSpan(ctx context.Context, span trace.Span, req guardrail.EvaluationRequest) (*guardrail.EvaluationVerdict, error) {
	span.SetAttributes(attribute.String(SpanTypeKey, SpanTypeGuardrails))
	ctx = trace.ContextWithSpan(ctx, span)
	return b.evaluate(ctx, span, req)
}

// evaluate performs the client call and the verdict-to-span projection. This
// is the only step that may block; everything else is synchronous attribute
// mutation.
func (b *Bridge) evaluate(ctx context.Context, span trace.Span, req guardrail.EvaluationRequest) (*guardrail.EvaluationVerdict, error) {
	verdict, err := b.client.Evaluate(ctx, req)
	if err != nil {
		span.SetAttributes(attribute.Int(GuardrailErrorKey, 1))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.WarnContext(ctx, "guardrail evaluation failed",
			"dataset_id", req.DatasetID,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(VerdictAttributes(verdict)...)

	if verdict.IsBlocked() {
		recordValidationEvents(span, verdict)
	}
	if tags := InsightTags(verdict); len(tags) > 0 {
		span.SetAttributes(attribute.StringSlice(InsightTagsKey, tags))
	}

	b.logger.DebugContext(ctx, "guardrail evaluation complete",
		"dataset_id", req.DatasetID,
		"action", verdict.Action.ActionType,
		"blocked", verdict.IsBlocked(),
	)
	return verdict, nil
}

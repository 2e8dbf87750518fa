// Package secure wraps LLM calls with policy evaluation. A guarded call runs
// inside an "interaction" span: the prompt is evaluated before the model is
// invoked, the completion itself is traced, and the model response is
// evaluated before it is returned.
package secure

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
	"github.com/whylabs/openllmtelemetry/pkg/observability"
)

const (
	tracerName          = "github.com/whylabs/openllmtelemetry/secure"
	interactionSpanName = "interaction"
	completionSpanName  = "gen_ai.chat"
)

// BlockedResponseFactory produces a substitute response when a verdict blocks
// the interaction. isPrompt is true when the prompt evaluation blocked and
// false when the response evaluation did.
type BlockedResponseFactory func(verdict *guardrail.EvaluationVerdict, isPrompt bool) string

// GuardedModel wraps a langchaingo model with guardrail evaluation and
// tracing. Both the prompt and the model response are evaluated; a block
// verdict surfaces as a *guardrail.BlockedError unless a blocked-response
// factory is configured.
type GuardedModel struct {
	model     llms.Model
	bridge    *observability.Bridge
	datasetID string
	tracer    trace.Tracer
	logger    *slog.Logger
	blocked   BlockedResponseFactory
}

// Option is a functional option for configuring a GuardedModel.
type Option func(*GuardedModel)

// WithTracer sets the tracer used for interaction and completion spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *GuardedModel) {
		g.tracer = tracer
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *GuardedModel) {
		g.logger = logger
	}
}

// WithBlockedResponseFactory substitutes blocked interactions with a
// caller-provided message instead of returning a BlockedError. The factory
// typically surfaces the verdict's block message to the end user.
func WithBlockedResponseFactory(f BlockedResponseFactory) Option {
	return func(g *GuardedModel) {
		g.blocked = f
	}
}

// NewGuardedModel creates a GuardedModel evaluating against the given dataset.
func NewGuardedModel(model llms.Model, bridge *observability.Bridge, datasetID string, opts ...Option) *GuardedModel {
	g := &GuardedModel{
		model:     model,
		bridge:    bridge,
		datasetID: datasetID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}
	return g
}

// Generate runs a guarded single-prompt completion.
//
// The prompt is evaluated first; a block verdict stops the interaction before
// the model is called. The completion runs in its own span. The model
// response is then evaluated as a prompt/response pair; a block verdict
// withholds the response. Evaluation failures propagate to the caller; a
// failed evaluation is never treated as a pass.
func (g *GuardedModel) Generate(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	ctx, span := g.tracer.Start(ctx, interactionSpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(observability.SpanTypeKey, observability.SpanTypeInteraction)),
	)
	defer span.End()

	promptVerdict, err := g.bridge.Evaluate(ctx, guardrail.EvaluationRequest{
		Prompt:    prompt,
		DatasetID: g.datasetID,
	})
	if err != nil {
		return "", err
	}
	if promptVerdict.IsBlocked() {
		g.logger.WarnContext(ctx, "prompt blocked by guardrail",
			"dataset_id", g.datasetID,
			"message", promptVerdict.Action.BlockMessage,
		)
		if g.blocked != nil {
			return g.blocked(promptVerdict, true), nil
		}
		return "", guardrail.NewBlockedError("prompt", promptVerdict)
	}

	response, err := g.complete(ctx, prompt, opts...)
	if err != nil {
		return "", err
	}

	responseVerdict, err := g.bridge.Evaluate(ctx, guardrail.EvaluationRequest{
		Prompt:    prompt,
		DatasetID: g.datasetID,
		Response:  &response,
	})
	if err != nil {
		return "", err
	}
	if responseVerdict.IsBlocked() {
		g.logger.WarnContext(ctx, "response blocked by guardrail",
			"dataset_id", g.datasetID,
			"message", responseVerdict.Action.BlockMessage,
		)
		if g.blocked != nil {
			return g.blocked(responseVerdict, false), nil
		}
		return "", guardrail.NewBlockedError("response", responseVerdict)
	}

	return response, nil
}

// complete invokes the underlying model inside a completion span.
func (g *GuardedModel) complete(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	ctx, span := g.tracer.Start(ctx, completionSpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(observability.SpanTypeKey, observability.SpanTypeCompletion)),
	)
	defer span.End()

	response, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return response, nil
}

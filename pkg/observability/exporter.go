package observability

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DebugSpanExporter decorates a span exporter with per-span debug logging.
// It is enabled via TracingConfig.Debug for diagnosing export problems.
type DebugSpanExporter struct {
	inner  sdktrace.SpanExporter
	logger *slog.Logger
}

// NewDebugSpanExporter wraps an exporter with debug logging.
func NewDebugSpanExporter(inner sdktrace.SpanExporter) *DebugSpanExporter {
	return &DebugSpanExporter{
		inner:  inner,
		logger: slog.Default(),
	}
}

// ExportSpans logs each span's name and delegates to the wrapped exporter.
func (e *DebugSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.logger.DebugContext(ctx, "exporting spans", "count", len(spans))
	for _, span := range spans {
		e.logger.DebugContext(ctx, "exporting span",
			"name", span.Name(),
			"trace_id", span.SpanContext().TraceID().String(),
		)
	}

	if err := e.inner.ExportSpans(ctx, spans); err != nil {
		e.logger.ErrorContext(ctx, "span export failed", "error", err)
		return err
	}
	e.logger.DebugContext(ctx, "done exporting spans")
	return nil
}

// Shutdown shuts down the wrapped exporter.
func (e *DebugSpanExporter) Shutdown(ctx context.Context) error {
	return e.inner.Shutdown(ctx)
}

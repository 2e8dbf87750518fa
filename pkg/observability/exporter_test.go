package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type failingExporter struct {
	err      error
	shutdown bool
}

func (f *failingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return f.err
}

func (f *failingExporter) Shutdown(ctx context.Context) error {
	f.shutdown = true
	return nil
}

func TestDebugSpanExporter_Delegates(t *testing.T) {
	inner := tracetest.NewInMemoryExporter()
	exporter := NewDebugSpanExporter(inner)

	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := provider.Tracer("test").Start(context.Background(), "debug-export")
	span.End()

	spans := inner.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "debug-export", spans[0].Name)
}

func TestDebugSpanExporter_PropagatesExportError(t *testing.T) {
	wantErr := errors.New("export failed")
	exporter := NewDebugSpanExporter(&failingExporter{err: wantErr})

	err := exporter.ExportSpans(context.Background(), nil)
	assert.ErrorIs(t, err, wantErr)
}

func TestDebugSpanExporter_Shutdown(t *testing.T) {
	inner := &failingExporter{}
	exporter := NewDebugSpanExporter(inner)

	require.NoError(t, exporter.Shutdown(context.Background()))
	assert.True(t, inner.shutdown)
}

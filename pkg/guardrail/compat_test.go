package guardrail

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordedSpan starts a span, runs fn against its context, and returns the
// finished span snapshot.
func recordedSpan(t *testing.T, fn func(ctx context.Context)) tracetest.SpanStub {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ctx, span := provider.Tracer("test").Start(context.Background(), "test")
	fn(ctx)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	return spans[0]
}

func spanAttribute(stub tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, attr := range stub.Attributes {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestCompatChecker_NoConstraintHeader(t *testing.T) {
	cc := newCompatChecker(discardLogger())

	stub := recordedSpan(t, func(ctx context.Context) {
		cc.check(ctx, http.Header{})
	})

	v, ok := spanAttribute(stub, "guardrail.response.version_constraint")
	require.True(t, ok)
	assert.Equal(t, "empty", v.AsString())
}

func TestCompatChecker_RecordsVersions(t *testing.T) {
	cc := newCompatChecker(discardLogger())
	cc.clientVersion = "1.2.0"

	headers := http.Header{}
	headers.Set("x-wls-verconstr", ">=1.0.0")
	headers.Set("x-wls-version", "2.1.0")

	stub := recordedSpan(t, func(ctx context.Context) {
		cc.check(ctx, headers)
	})

	v, ok := spanAttribute(stub, "guardrail.response.client_version_constraint")
	require.True(t, ok)
	assert.Equal(t, ">=1.0.0", v.AsString())

	v, ok = spanAttribute(stub, "guardrail.response.client_version")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", v.AsString())

	v, ok = spanAttribute(stub, "guardrail.headers.x-wls-version")
	require.True(t, ok)
	assert.Equal(t, "2.1.0", v.AsString())

	// A supported container version leaves no constraint-violation attribute.
	_, ok = spanAttribute(stub, "guardrail.container_version_constraint")
	assert.False(t, ok)
}

func TestCompatChecker_UnsupportedContainer(t *testing.T) {
	cc := newCompatChecker(discardLogger())
	cc.clientVersion = "1.2.0"

	headers := http.Header{}
	headers.Set("x-wls-verconstr", ">=1.0.0")
	headers.Set("x-wls-version", "3.5.0")

	stub := recordedSpan(t, func(ctx context.Context) {
		cc.check(ctx, headers)
	})

	v, ok := spanAttribute(stub, "guardrail.response.container_version")
	require.True(t, ok)
	assert.Equal(t, "3.5.0", v.AsString())

	v, ok = spanAttribute(stub, "guardrail.container_version_constraint")
	require.True(t, ok)
	assert.Equal(t, containerCompatibilityConstraint, v.AsString())
}

func TestCompatChecker_LegacyHeaderNames(t *testing.T) {
	cc := newCompatChecker(discardLogger())
	cc.clientVersion = "1.2.0"

	headers := http.Header{}
	headers.Set("whylabssecureheaders.client_version_constraint", ">=1.0.0")
	headers.Set("whylabssecureheaders.version", "1.0.23")

	stub := recordedSpan(t, func(ctx context.Context) {
		cc.check(ctx, headers)
	})

	v, ok := spanAttribute(stub, "guardrail.headers.whylabssecureheaders.version")
	require.True(t, ok)
	assert.Equal(t, "1.0.23", v.AsString())
}

func TestCompatChecker_NonSemverClientVersion(t *testing.T) {
	cc := newCompatChecker(discardLogger())
	cc.clientVersion = "dev"

	headers := http.Header{}
	headers.Set("x-wls-verconstr", ">=1.0.0")
	headers.Set("x-wls-version", "2.0.0")

	stub := recordedSpan(t, func(ctx context.Context) {
		cc.check(ctx, headers)
	})

	v, ok := spanAttribute(stub, "guardrail.response.client_version")
	require.True(t, ok)
	assert.Equal(t, "dev", v.AsString())
}

package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// TracingErrorCode represents error codes specific to tracing setup and
// shutdown.
type TracingErrorCode string

const (
	// ErrExporterConnection indicates failure to configure or connect to a
	// span exporter.
	ErrExporterConnection TracingErrorCode = "TRACE_EXPORTER_CONNECTION"

	// ErrShutdownTimeout indicates a timeout occurred during graceful
	// shutdown of the tracer provider.
	ErrShutdownTimeout TracingErrorCode = "TRACE_SHUTDOWN_TIMEOUT"
)

// TracingError represents a structured error for tracing operations.
type TracingError struct {
	Code    TracingErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *TracingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *TracingError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *TracingError) Is(target error) bool {
	var tErr *TracingError
	if errors.As(target, &tErr) {
		return e.Code == tErr.Code
	}
	return false
}

// resourceApplicationName builds the application.name resource attribute.
func resourceApplicationName(name string) attribute.KeyValue {
	return attribute.String("application.name", name)
}

// resourceID builds the resource.id attribute that pins traces to a dataset.
func resourceID(datasetID string) attribute.KeyValue {
	return attribute.String("resource.id", datasetID)
}

package guardrail

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for guardrail operations.
type ErrorCode string

// Guardrail error codes
const (
	// ErrConfigInvalid indicates required endpoint configuration is missing
	// or malformed. Surfaced before any network attempt.
	ErrConfigInvalid ErrorCode = "GUARDRAIL_CONFIG_INVALID"

	// ErrInvalidRequest indicates the evaluation request is missing required
	// fields (e.g. no prompt, no dataset id).
	ErrInvalidRequest ErrorCode = "GUARDRAIL_INVALID_REQUEST"

	// ErrCallFailed indicates a transport error or non-success response from
	// the evaluation endpoint. Evaluation calls are never retried.
	ErrCallFailed ErrorCode = "GUARDRAIL_CALL_FAILED"

	// ErrMalformedVerdict indicates the response body did not match the
	// expected verdict shape.
	ErrMalformedVerdict ErrorCode = "GUARDRAIL_MALFORMED_VERDICT"

	// ErrBlocked indicates a verdict blocked the interaction.
	ErrBlocked ErrorCode = "GUARDRAIL_BLOCKED"
)

// GuardrailError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and retryability hints.
type GuardrailError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *GuardrailError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *GuardrailError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *GuardrailError) Is(target error) bool {
	var gErr *GuardrailError
	if errors.As(target, &gErr) {
		return e.Code == gErr.Code
	}
	return false
}

// NewConfigError creates an error for invalid endpoint configuration.
func NewConfigError(message string) *GuardrailError {
	return &GuardrailError{
		Code:    ErrConfigInvalid,
		Message: message,
	}
}

// NewInvalidRequestError creates an error for an evaluation request that is
// missing required fields.
func NewInvalidRequestError(message string) *GuardrailError {
	return &GuardrailError{
		Code:    ErrInvalidRequest,
		Message: message,
	}
}

// NewCallError creates an error for a failed evaluation call. The error is
// marked retryable as a hint to callers, though this client never retries.
func NewCallError(message string, cause error) *GuardrailError {
	return &GuardrailError{
		Code:      ErrCallFailed,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewMalformedVerdictError creates an error for a verdict body that failed to
// deserialize.
func NewMalformedVerdictError(cause error) *GuardrailError {
	return &GuardrailError{
		Code:    ErrMalformedVerdict,
		Message: "evaluation response does not match the expected verdict shape",
		Cause:   cause,
	}
}

// BlockedError is returned by guarded call wrappers when a verdict blocks the
// interaction. It carries the verdict so callers can inspect the report and
// surface the block message.
type BlockedError struct {
	// Stage is "prompt" or "response" depending on which evaluation blocked.
	Stage   string
	Message string
	Verdict *EvaluationVerdict
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s] guardrail blocked %s: %s", ErrBlocked, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] guardrail blocked %s", ErrBlocked, e.Stage)
}

// Is matches GuardrailError targets carrying the GUARDRAIL_BLOCKED code, so
// callers can test for blocks by code without knowing the concrete type.
func (e *BlockedError) Is(target error) bool {
	var gErr *GuardrailError
	if errors.As(target, &gErr) {
		return gErr.Code == ErrBlocked
	}
	return false
}

// NewBlockedError creates a BlockedError from a blocking verdict.
func NewBlockedError(stage string, verdict *EvaluationVerdict) *BlockedError {
	return &BlockedError{
		Stage:   stage,
		Message: verdict.Action.BlockMessage,
		Verdict: verdict,
	}
}

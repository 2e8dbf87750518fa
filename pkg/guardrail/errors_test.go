package guardrail

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardrailError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewConfigError("guardrail API key is required")
		assert.Equal(t, "[GUARDRAIL_CONFIG_INVALID] guardrail API key is required", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewCallError("evaluation call failed", cause)
		assert.Equal(t, "[GUARDRAIL_CALL_FAILED] evaluation call failed: connection refused", err.Error())
	})
}

func TestGuardrailError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := NewMalformedVerdictError(cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestGuardrailError_Is(t *testing.T) {
	err := NewCallError("evaluation call failed", nil)
	wrapped := fmt.Errorf("evaluating prompt: %w", err)

	assert.ErrorIs(t, wrapped, &GuardrailError{Code: ErrCallFailed})
	assert.NotErrorIs(t, wrapped, &GuardrailError{Code: ErrConfigInvalid})
}

func TestGuardrailError_Retryable(t *testing.T) {
	assert.True(t, NewCallError("call failed", nil).Retryable)
	assert.False(t, NewInvalidRequestError("missing prompt").Retryable)
	assert.False(t, NewMalformedVerdictError(nil).Retryable)
}

func TestBlockedError(t *testing.T) {
	verdict := &EvaluationVerdict{
		Action: VerdictAction{
			ActionType:    ActionBlock,
			IsActionBlock: true,
			BlockMessage:  "prompt violates policy",
		},
	}

	err := NewBlockedError("prompt", verdict)
	assert.Equal(t, "[GUARDRAIL_BLOCKED] guardrail blocked prompt: prompt violates policy", err.Error())
	assert.Equal(t, "prompt", err.Stage)
	require.NotNil(t, err.Verdict)
	assert.True(t, err.Verdict.IsBlocked())

	var blocked *BlockedError
	assert.ErrorAs(t, fmt.Errorf("generate: %w", err), &blocked)
	assert.ErrorIs(t, err, &GuardrailError{Code: ErrBlocked})
}

func TestBlockedError_NoMessage(t *testing.T) {
	err := NewBlockedError("response", &EvaluationVerdict{})
	assert.Equal(t, "[GUARDRAIL_BLOCKED] guardrail blocked response", err.Error())
}

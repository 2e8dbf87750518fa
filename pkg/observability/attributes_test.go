package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
)

func floatPtr(f float64) *float64 { return &f }

func findAttribute(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestVerdictAttributes_Metrics(t *testing.T) {
	verdict := &guardrail.EvaluationVerdict{
		Metrics: []map[string]any{
			{
				"prompt.stats.token_count": float64(42),
				"prompt.pii.redacted":      "XXXX",
				"prompt.sentiment":         nil,
				"prompt.has_patterns":      true,
				"prompt.topic":             "medicine",
			},
		},
	}

	attrs := VerdictAttributes(verdict)

	v, ok := findAttribute(attrs, "langkit.metrics.prompt.stats.token_count")
	require.True(t, ok)
	assert.Equal(t, 42.0, v.AsFloat64())

	v, ok = findAttribute(attrs, "langkit.metrics.prompt.has_patterns")
	require.True(t, ok)
	assert.True(t, v.AsBool())

	v, ok = findAttribute(attrs, "langkit.metrics.prompt.topic")
	require.True(t, ok)
	assert.Equal(t, "medicine", v.AsString())

	_, ok = findAttribute(attrs, "langkit.metrics.prompt.pii.redacted")
	assert.False(t, ok, "redacted metrics must not be exported")

	_, ok = findAttribute(attrs, "langkit.metrics.prompt.sentiment")
	assert.False(t, ok, "null metrics must not be exported")
}

func TestVerdictAttributes_ScorePrefixStripped(t *testing.T) {
	verdict := &guardrail.EvaluationVerdict{
		Scores: []map[string]*float64{
			{
				"prompt.score.injection":  floatPtr(0.91),
				"response.score.toxicity": floatPtr(0.12),
				"response.score.refusal":  nil,
			},
		},
	}

	attrs := VerdictAttributes(verdict)

	v, ok := findAttribute(attrs, "langkit.metrics.injection")
	require.True(t, ok)
	assert.Equal(t, 0.91, v.AsFloat64())

	v, ok = findAttribute(attrs, "langkit.metrics.toxicity")
	require.True(t, ok)
	assert.Equal(t, 0.12, v.AsFloat64())

	_, ok = findAttribute(attrs, "langkit.metrics.refusal")
	assert.False(t, ok, "null scores must not be exported")
	_, ok = findAttribute(attrs, "langkit.metrics.prompt.score.injection")
	assert.False(t, ok, "score keys must lose their stage prefix")
}

func TestVerdictAttributes_MultipleMappings(t *testing.T) {
	verdict := &guardrail.EvaluationVerdict{
		Metrics: []map[string]any{
			{"prompt.stats.token_count": float64(10)},
			{"response.stats.token_count": float64(25)},
		},
	}

	attrs := VerdictAttributes(verdict)

	_, ok := findAttribute(attrs, "langkit.metrics.prompt.stats.token_count")
	assert.True(t, ok)
	_, ok = findAttribute(attrs, "langkit.metrics.response.stats.token_count")
	assert.True(t, ok)
}

func TestVerdictAttributes_Metadata(t *testing.T) {
	verdict := &guardrail.EvaluationVerdict{
		Metadata: guardrail.VerdictMetadata{
			PolicyID:            "policy-7",
			PolicyVersion:       3,
			ContainerVersion:    "2.1.0",
			PolicyLastUpdatedMs: 1724630400000,
		},
	}

	attrs := VerdictAttributes(verdict)

	v, ok := findAttribute(attrs, "guardrail.api.policy_id")
	require.True(t, ok)
	assert.Equal(t, "policy-7", v.AsString())

	v, ok = findAttribute(attrs, "guardrail.api.policy_version")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.AsInt64())

	v, ok = findAttribute(attrs, "guardrail.api.container_version")
	require.True(t, ok)
	assert.Equal(t, "2.1.0", v.AsString())

	v, ok = findAttribute(attrs, "guardrail.api.policy_last_updated_ms")
	require.True(t, ok)
	assert.Equal(t, int64(1724630400000), v.AsInt64())
}

func TestVerdictAttributes_EmptyMetadataOmitted(t *testing.T) {
	attrs := VerdictAttributes(&guardrail.EvaluationVerdict{})
	assert.Empty(t, attrs)
}

func TestInsightTags_BlockedFirst(t *testing.T) {
	verdict := &guardrail.EvaluationVerdict{
		Action: guardrail.VerdictAction{
			ActionType:    guardrail.ActionBlock,
			IsActionBlock: true,
		},
		ValidationResults: guardrail.ValidationResults{
			Report: []guardrail.ValidationReportEntry{
				{Metric: "prompt.score.injection"},
				{Metric: "response.score.toxicity"},
			},
		},
	}

	tags := InsightTags(verdict)
	require.Len(t, tags, 3)
	assert.Equal(t, "BLOCKED", tags[0])
	assert.Equal(t, []string{"BLOCKED", "injection", "toxicity"}, tags)
}

func TestInsightTags_DuplicatesPreserved(t *testing.T) {
	verdict := &guardrail.EvaluationVerdict{
		ValidationResults: guardrail.ValidationResults{
			Report: []guardrail.ValidationReportEntry{
				{Metric: "prompt.score.injection"},
				{Metric: "prompt.score.injection"},
			},
		},
	}

	tags := InsightTags(verdict)
	assert.Equal(t, []string{"injection", "injection"}, tags)
}

func TestInsightTags_EmptyOnPass(t *testing.T) {
	verdict := &guardrail.EvaluationVerdict{
		Action: guardrail.VerdictAction{ActionType: guardrail.ActionPass},
	}
	assert.Empty(t, InsightTags(verdict))
}

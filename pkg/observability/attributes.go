package observability

import (
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
)

// Span attribute keys forming the wire-level contract for downstream trace
// consumers. These names must be reproduced exactly.
const (
	// SpanTypeKey classifies a span for dashboard queries.
	SpanTypeKey = "span.type"

	// LangkitMetricPrefix prefixes every exported metric and score.
	LangkitMetricPrefix = "langkit.metrics."

	// GuardrailAPIPrefix prefixes policy metadata fields.
	GuardrailAPIPrefix = "guardrail.api."

	// InsightTagsKey carries the ordered insight tag list. Omitted entirely
	// when the list is empty.
	InsightTagsKey = "langkit.insights.tags"

	// GuardrailErrorKey is set to 1 when an evaluation fails.
	GuardrailErrorKey = "guardrails.error"
)

// Span type values
const (
	SpanTypeGuardrails  = "guardrails"
	SpanTypeCompletion  = "completion"
	SpanTypeInteraction = "interaction"
)

// Span names for guardrail evaluations
const (
	// SpanGuardrailRequest names a prompt-only evaluation span.
	SpanGuardrailRequest = "guardrails.request"

	// SpanGuardrailResponse names a paired prompt/response evaluation span.
	SpanGuardrailResponse = "guardrails.response"
)

// TagBlocked is prepended to the insight tag list on a block verdict.
const TagBlocked = "BLOCKED"

// VerdictAttributes projects a verdict's metrics, scores, and metadata onto
// span attributes.
//
// Every non-null metric with a non-redacted key yields exactly one
// langkit.metrics.<key> attribute; every non-null score yields one
// langkit.metrics.<key> attribute with its prompt.score./response.score.
// prefix stripped; metadata fields map to guardrail.api.<field>. Keys within
// a mapping are emitted in sorted order since attribute sets are unordered.
func VerdictAttributes(v *guardrail.EvaluationVerdict) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	for _, metrics := range v.Metrics {
		for _, key := range sortedKeys(metrics) {
			value := metrics[key]
			if value == nil || guardrail.IsRedactedKey(key) {
				continue
			}
			attrs = append(attrs, scalarAttribute(LangkitMetricPrefix+key, value))
		}
	}

	for _, scores := range v.Scores {
		for _, key := range sortedKeys(scores) {
			score := scores[key]
			if score == nil {
				continue
			}
			attrs = append(attrs, attribute.Float64(LangkitMetricPrefix+guardrail.StripScorePrefix(key), *score))
		}
	}

	attrs = append(attrs, metadataAttributes(v.Metadata)...)
	return attrs
}

// metadataAttributes projects policy metadata fields present in the verdict.
func metadataAttributes(md guardrail.VerdictMetadata) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if md.PolicyID != "" {
		attrs = append(attrs, attribute.String(GuardrailAPIPrefix+"policy_id", md.PolicyID))
	}
	if md.PolicyVersion != 0 {
		attrs = append(attrs, attribute.Int64(GuardrailAPIPrefix+"policy_version", md.PolicyVersion))
	}
	if md.ContainerVersion != "" {
		attrs = append(attrs, attribute.String(GuardrailAPIPrefix+"container_version", md.ContainerVersion))
	}
	if md.PolicyLastUpdatedMs != 0 {
		attrs = append(attrs, attribute.Int64(GuardrailAPIPrefix+"policy_last_updated_ms", md.PolicyLastUpdatedMs))
	}
	return attrs
}

// InsightTags computes the ordered insight tag list for a verdict: "BLOCKED"
// first on a block action, then one tag per validation-report entry with the
// score prefix stripped. Duplicates are preserved; downstream consumers may
// depend on duplicate counts as a signal.
func InsightTags(v *guardrail.EvaluationVerdict) []string {
	var tags []string
	if v.IsBlocked() {
		tags = append(tags, TagBlocked)
	}
	for _, entry := range v.ValidationResults.Report {
		tags = append(tags, guardrail.StripScorePrefix(entry.Metric))
	}
	return tags
}

// scalarAttribute converts an arbitrary scalar decoded from JSON into a typed
// attribute. Unrecognized types fall back to their string form.
func scalarAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case float64:
		return attribute.Float64(key, v)
	case float32:
		return attribute.Float64(key, float64(v))
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
)

// validationFailureEvent names the span event recorded per validation-report
// entry on a block verdict.
const validationFailureEvent = "guardrails.api.validation_failure"

// recordValidationEvents adds one span event per validation-report entry,
// carrying the rule id, explanation, thresholds, and observed metric value.
func recordValidationEvents(span trace.Span, verdict *guardrail.EvaluationVerdict) {
	policyID := verdict.Metadata.PolicyID

	for _, entry := range verdict.ValidationResults.Report {
		attrs := []attribute.KeyValue{
			attribute.String("rule_id", guardrail.StripScorePrefix(entry.Metric)),
			attribute.String("explanation", entry.Details),
			attribute.String("id", entry.ID),
			attribute.StringSlice("metrics", []string{entry.Metric}),
		}
		if policyID != "" {
			attrs = append(attrs, attribute.String("langkit.metrics.policy", policyID))
		}
		if entry.FailureLevel != "" {
			attrs = append(attrs, attribute.String("action", entry.FailureLevel))
		}
		if entry.LowerThreshold != nil {
			attrs = append(attrs, attribute.Float64("lower_threshold", *entry.LowerThreshold))
		}
		if entry.UpperThreshold != nil {
			attrs = append(attrs, attribute.Float64("upper_threshold", *entry.UpperThreshold))
		}
		if len(entry.AllowedValues) > 0 {
			attrs = append(attrs, attribute.String("allowed_values", fmt.Sprintf("%v", entry.AllowedValues)))
		}
		if len(entry.DisallowedValues) > 0 {
			attrs = append(attrs, attribute.String("disallowed_values", fmt.Sprintf("%v", entry.DisallowedValues)))
		}
		if entry.MustBeNone != nil {
			attrs = append(attrs, attribute.Bool("must_be_none", *entry.MustBeNone))
		}
		if entry.MustBeNonNone != nil {
			attrs = append(attrs, attribute.Bool("must_be_non_none", *entry.MustBeNonNone))
		}
		if entry.Value != nil {
			attrs = append(attrs, attribute.String("metric_value", fmt.Sprintf("%v", entry.Value)))
		}

		span.AddEvent(validationFailureEvent, trace.WithAttributes(attrs...))
	}
}

package guardrail

import (
	"encoding/json"
	"strings"
	"time"
)

// Score key prefixes attached by the policy service. They are stripped before
// metric names are exported as span attributes or insight tags.
const (
	PromptScorePrefix   = "prompt.score."
	ResponseScorePrefix = "response.score."
)

// RedactionSuffix marks metric keys whose values must never be exported.
const RedactionSuffix = ".redacted"

// EndpointConfig holds the connection settings for a policy-evaluation
// endpoint. It is immutable after construction and safe to share between
// concurrent evaluations.
type EndpointConfig struct {
	// BaseURL is the root URL of the policy-evaluation service.
	BaseURL string `yaml:"endpoint" mapstructure:"endpoint"`

	// APIKey authorizes requests via the X-API-Key header.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// LogProfile selects whether the service logs a profile for each
	// evaluation. Sent as the "log" query parameter.
	LogProfile bool `yaml:"log_profile" mapstructure:"log_profile"`

	// Timeout bounds each evaluation call. Zero means the default (15s).
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EvaluationRequest is a single evaluation of a prompt, optionally paired
// with a model response. Identity is (CorrelationID, DatasetID); requests are
// not persisted beyond the call.
type EvaluationRequest struct {
	Prompt        string
	CorrelationID string
	DatasetID     string

	// Response is the model output to evaluate together with the prompt.
	// When nil, the service evaluates the prompt alone. The field is omitted
	// from the wire body entirely when absent, never sent as null.
	Response *string
}

// HasResponse reports whether the request carries a model response.
func (r EvaluationRequest) HasResponse() bool {
	return r.Response != nil
}

// evaluationBody is the wire shape of the evaluate request.
type evaluationBody struct {
	Prompt    string      `json:"prompt,omitempty"`
	ID        string      `json:"id"`
	DatasetID string      `json:"datasetId"`
	Response  *string     `json:"response,omitempty"`
	Options   *runOptions `json:"options,omitempty"`
}

type runOptions struct {
	MetricFilter *metricFilterOptions `json:"metric_filter,omitempty"`
}

// metricFilterOptions restricts which metrics the service computes. The
// nested arrays express "metrics requiring these inputs": for paired
// evaluations we request only metrics that need the response, or both the
// prompt and the response.
type metricFilterOptions struct {
	ByRequiredInputs [][]string `json:"by_required_inputs,omitempty"`
}

// EvaluationVerdict is the structured result returned by the policy service.
type EvaluationVerdict struct {
	// Metrics is an ordered sequence of metric-name to scalar-value
	// mappings. No fixed schema is assumed for metric names.
	Metrics []map[string]any `json:"metrics"`

	// Scores maps prefixed metric names to nullable numeric scores.
	Scores []map[string]*float64 `json:"scores"`

	Metadata          VerdictMetadata   `json:"metadata"`
	Action            VerdictAction     `json:"action"`
	ValidationResults ValidationResults `json:"validation_results"`

	// PerfInfo and ScorePerfInfo are opaque timing payloads; they are never
	// projected onto spans.
	PerfInfo      json.RawMessage `json:"perf_info,omitempty"`
	ScorePerfInfo json.RawMessage `json:"score_perf_info,omitempty"`
}

// IsBlocked reports whether the verdict's action blocks the interaction.
func (v *EvaluationVerdict) IsBlocked() bool {
	return v.Action.ActionType == ActionBlock
}

// VerdictMetadata identifies the policy that produced a verdict.
type VerdictMetadata struct {
	PolicyID            string `json:"policy_id"`
	PolicyVersion       int64  `json:"policy_version"`
	ContainerVersion    string `json:"container_version"`
	PolicyLastUpdatedMs int64  `json:"policy_last_updated_ms"`
}

// ActionType is the outcome class of an evaluation.
type ActionType string

const (
	ActionBlock ActionType = "block"
	ActionPass  ActionType = "pass"
)

// VerdictAction is the decision attached to a verdict. A block action
// carries a caller-facing message explaining why the interaction must not
// proceed.
type VerdictAction struct {
	ActionType    ActionType `json:"action_type"`
	BlockMessage  string     `json:"block_message,omitempty"`
	IsActionBlock bool       `json:"is_action_block"`
}

// ValidationResults groups the rule-evaluation report for a verdict.
type ValidationResults struct {
	Report []ValidationReportEntry `json:"report"`
}

// ValidationReportEntry is a single rule-evaluation result explaining why a
// metric triggered a policy condition.
type ValidationReportEntry struct {
	ID               string   `json:"id"`
	Metric           string   `json:"metric"`
	Details          string   `json:"details"`
	Value            any      `json:"value"`
	UpperThreshold   *float64 `json:"upper_threshold,omitempty"`
	LowerThreshold   *float64 `json:"lower_threshold,omitempty"`
	AllowedValues    []any    `json:"allowed_values,omitempty"`
	DisallowedValues []any    `json:"disallowed_values,omitempty"`
	MustBeNone       *bool    `json:"must_be_none,omitempty"`
	MustBeNonNone    *bool    `json:"must_be_non_none,omitempty"`
	FailureLevel     string   `json:"failure_level,omitempty"`
}

// StripScorePrefix removes the prompt.score. / response.score. prefix from a
// metric name. Names without a known prefix are returned unchanged.
func StripScorePrefix(metric string) string {
	metric = strings.TrimPrefix(metric, ResponseScorePrefix)
	metric = strings.TrimPrefix(metric, PromptScorePrefix)
	return metric
}

// IsRedactedKey reports whether a metric key is marked for redaction and must
// be excluded from attribute export.
func IsRedactedKey(key string) bool {
	return strings.HasSuffix(key, RedactionSuffix)
}

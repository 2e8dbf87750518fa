package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	evaluatePath = "/evaluate"

	defaultTimeout = 15 * time.Second
	envTimeout     = "GUARDRAILS_API_TIMEOUT"

	authHeaderName = "X-API-Key"
)

// Client is an HTTP client for a remote policy-evaluation endpoint. It is a
// pure request/response mapper: it performs no retries and never synthesizes
// a fallback verdict.
//
// A Client is safe for concurrent use.
type Client struct {
	cfg        EndpointConfig
	httpClient *http.Client
	contentID  ContentIDProvider
	compat     *compatChecker
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client. Useful for custom
// transports or test doubles.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithContentIDProvider sets the provider used to derive a correlation id
// from the evaluated content when the request does not carry one.
func WithContentIDProvider(p ContentIDProvider) ClientOption {
	return func(c *Client) {
		c.contentID = p
	}
}

// WithLogger sets the structured logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the given endpoint configuration.
//
// The configuration is validated eagerly: a missing base URL or API key
// yields a GUARDRAIL_CONFIG_INVALID error before any network attempt. The
// call timeout resolves in order: cfg.Timeout, the GUARDRAILS_API_TIMEOUT
// environment variable (seconds), then the 15s default.
func NewClient(cfg EndpointConfig, opts ...ClientOption) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, NewConfigError("guardrail endpoint base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, NewConfigError("guardrail API key is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, NewConfigError(fmt.Sprintf("invalid guardrail endpoint base URL: %v", err))
	}

	c := &Client{
		cfg:       cfg,
		contentID: UUIDContentID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: resolveTimeout(cfg.Timeout, c.logger)}
	}
	c.compat = newCompatChecker(c.logger)

	return c, nil
}

// resolveTimeout picks the effective call timeout from the config value, the
// environment, or the default, in that order.
func resolveTimeout(configured time.Duration, logger *slog.Logger) time.Duration {
	if configured > 0 {
		return configured
	}
	if raw := os.Getenv(envTimeout); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil || seconds <= 0 {
			logger.Warn("failed to parse timeout from environment, using default",
				"env", envTimeout,
				"value", raw,
				"default", defaultTimeout,
			)
			return defaultTimeout
		}
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultTimeout
}

// Evaluate sends a single evaluation request and returns the deserialized
// verdict.
//
// The prompt is required. When the request carries a response, both prompt
// and response are evaluated as a pair and the request restricts metrics to
// those requiring the response (or both inputs). Any transport or non-2xx
// failure yields a GUARDRAIL_CALL_FAILED error; a body that does not
// deserialize yields GUARDRAIL_MALFORMED_VERDICT. No verdict-shape validation
// is performed locally beyond deserialization.
func (c *Client) Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationVerdict, error) {
	if req.Prompt == "" {
		return nil, NewInvalidRequestError("evaluation request requires a prompt")
	}
	if req.DatasetID == "" {
		return nil, NewInvalidRequestError("evaluation request requires a dataset id")
	}

	body := evaluationBody{
		Prompt:    req.Prompt,
		ID:        c.correlationID(req.CorrelationID, req.Prompt, req.Response),
		DatasetID: req.DatasetID,
		Response:  req.Response,
	}
	if req.HasResponse() {
		// Only run the metrics that require the response, or the prompt and
		// the response together. This covers input-similarity style metrics.
		body.Options = &runOptions{
			MetricFilter: &metricFilterOptions{
				ByRequiredInputs: [][]string{{"response"}, {"prompt", "response"}},
			},
		}
	}

	return c.post(ctx, body)
}

// EvaluateChunk evaluates a single streaming response chunk without a prompt.
func (c *Client) EvaluateChunk(ctx context.Context, chunk, datasetID string) (*EvaluationVerdict, error) {
	if chunk == "" {
		return nil, NewInvalidRequestError("chunk evaluation requires content")
	}
	if datasetID == "" {
		return nil, NewInvalidRequestError("chunk evaluation requires a dataset id")
	}

	body := evaluationBody{
		ID:        c.correlationID("", chunk, nil),
		DatasetID: datasetID,
		Response:  &chunk,
	}
	return c.post(ctx, body)
}

// correlationID returns the supplied id, or derives one from the evaluated
// content via the configured provider.
func (c *Client) correlationID(supplied, prompt string, response *string) string {
	if supplied != "" {
		return supplied
	}
	messages := []string{prompt}
	if response != nil {
		messages = append(messages, *response)
	}
	id, err := c.contentID(messages)
	if err != nil {
		c.logger.Warn("failed to generate content id", "error", err)
		return ""
	}
	return id
}

// post performs the HTTP exchange and decodes the verdict.
func (c *Client) post(ctx context.Context, body evaluationBody) (*EvaluationVerdict, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewCallError("failed to encode evaluation request", err)
	}

	endpoint := c.evaluateURL()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, NewCallError("failed to create evaluation request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(authHeaderName, c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewCallError(fmt.Sprintf("evaluation call to %s failed", endpoint), err)
	}
	defer resp.Body.Close()

	c.compat.check(ctx, resp.Header)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewCallError("failed to read evaluation response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewCallError(
			fmt.Sprintf("evaluation endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			nil,
		)
	}

	var verdict EvaluationVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, NewMalformedVerdictError(err)
	}

	c.logger.Debug("evaluation completed",
		"dataset_id", body.DatasetID,
		"action", verdict.Action.ActionType,
	)
	return &verdict, nil
}

// evaluateURL builds the evaluate endpoint URL with the log-profile selector
// and performance-info capture disabled.
func (c *Client) evaluateURL() string {
	q := url.Values{}
	q.Set("log", strconv.FormatBool(c.cfg.LogProfile))
	q.Set("perf_info", "false")
	return strings.TrimRight(c.cfg.BaseURL, "/") + evaluatePath + "?" + q.Encode()
}

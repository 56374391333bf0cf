// Package llm provides the low-level HTTP transport to an
// OpenAI-compatible chat completion endpoint: request
// marshaling, bearer-token auth, and a bounded exponential-backoff retry
// loop with HTTP-status classification. internal/translate builds the
// prompt, cost model, and target-language/tone semantics on top of it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/llmlogger"
)

// Client sends chat completion requests to an OpenAI-compatible API.
type Client interface {
	// ChatCompletion sends a chat completion request, retrying 429/5xx
	// responses with exponential backoff and jitter up to maxRetries
	//. 401/403/400 and any other non-2xx
	// status are returned as classified, non-retryable errors.
	ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (*ChatResponse, error)

	// ChatCompletionWithLabel is ChatCompletion with an explicit
	// audit-log label (e.g. a job/chunk identity) in place of the
	// default per-model label.
	ChatCompletionWithLabel(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int, label string) (*ChatResponse, error)

	// SetLogger attaches an audit logger; every ChatCompletion call is
	// recorded if one is set.
	SetLogger(logger *llmlogger.Logger)
}

// clientImpl is an OpenAI-compatible chat completion client.
type clientImpl struct {
	baseURL             string
	apiKey              string
	model               string
	httpClient          *http.Client
	logger              *llmlogger.Logger
	maxRetries          int
	initialRetryDelayMs int
}

var _ Client = (*clientImpl)(nil)

// Option configures a Client constructed by NewClient.
type Option func(*clientImpl)

// WithRetryPolicy overrides the default retry budget (maxRetries=3,
// initialRetryDelayMs=1000).
func WithRetryPolicy(maxRetries, initialRetryDelayMs int) Option {
	return func(c *clientImpl) {
		c.maxRetries = maxRetries
		c.initialRetryDelayMs = initialRetryDelayMs
	}
}

// NewClient connects to an OpenAI-compatible API at baseURL using model.
func NewClient(baseURL, apiKey, model string, opts ...Option) Client {
	c := &clientImpl{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxRetries:          3,
		initialRetryDelayMs: 1000,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *clientImpl) SetLogger(logger *llmlogger.Logger) {
	c.logger = logger
}

type attemptResult struct {
	body       []byte
	statusCode int
	err        error
}

// classify maps an HTTP status code to the apperrors taxonomy, or nil if
// statusCode is 200.
func classify(endpoint string, statusCode int, body []byte) error {
	if statusCode == http.StatusOK {
		return nil
	}

	var apiResp ChatResponse
	message := string(body)
	if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.Error != nil {
		message = apiResp.Error.Error()
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &apperrors.UpstreamPermanentError{Endpoint: endpoint, StatusCode: statusCode, Err: fmt.Errorf("%s", message)}
	case statusCode == http.StatusBadRequest:
		return &apperrors.ValidationError{Field: "request", Reason: fmt.Sprintf("upstream at %s rejected request: %s", endpoint, message)}
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return &apperrors.UpstreamTransientError{Endpoint: endpoint, StatusCode: statusCode, Err: fmt.Errorf("%s", message)}
	default:
		return &apperrors.UpstreamPermanentError{Endpoint: endpoint, StatusCode: statusCode, Err: fmt.Errorf("%s", message)}
	}
}

// executeWithRetry performs the HTTP request, retrying only the
// Upstream-transient class (429/5xx) with exponential
// backoff starting at initialRetryDelayMs and delay at retry k =
// initial * 2^k * (1 +/- 0.25 jitter).
func (c *clientImpl) executeWithRetry(ctx context.Context, buildReq func() (*http.Request, error), endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("failed to build request to %s: %w", endpoint, err)
		}

		result := c.executeRequest(httpReq)
		if result.err != nil {
			return nil, &apperrors.UpstreamTransientError{Endpoint: endpoint, StatusCode: 0, Err: result.err}
		}

		classified := classify(endpoint, result.statusCode, result.body)
		if classified == nil {
			return result.body, nil
		}
		if !apperrors.Retryable(classified) || attempt == c.maxRetries {
			return nil, classified
		}

		lastErr = classified
		delay := backoffDelay(c.initialRetryDelayMs, attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// backoffDelay implements the formula: initial * 2^k * (1 +/- 0.25 jitter).
func backoffDelay(initialMs, attempt int) time.Duration {
	base := float64(initialMs) * pow2(attempt)
	jitter := 1 + (rand.Float64()*0.5 - 0.25) // nolint:gosec // jitter timing only
	return time.Duration(base*jitter) * time.Millisecond
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

func (c *clientImpl) executeRequest(httpReq *http.Request) attemptResult {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return attemptResult{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{err: err}
	}
	return attemptResult{body: body, statusCode: resp.StatusCode}
}

func (c *clientImpl) ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (*ChatResponse, error) {
	return c.ChatCompletionWithLabel(ctx, messages, temperature, maxTokens, fmt.Sprintf("model-%s", c.model))
}

// ChatCompletionWithLabel is ChatCompletion with an explicit audit-log
// label, used by internal/translate to tag each call with its
// job/chunk identity instead of the generic per-model label.
func (c *clientImpl) ChatCompletionWithLabel(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int, label string) (*ChatResponse, error) {
	req := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	endpoint := c.baseURL + "/chat/completions"
	buildReq := func() (*http.Request, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chat completion request for model %s: %w", c.model, err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return httpReq, nil
	}

	respBody, err := c.executeWithRetry(ctx, buildReq, endpoint)
	if err != nil {
		return nil, err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s for model %s: %w", endpoint, c.model, err)
	}
	if chatResp.Error != nil {
		return nil, &apperrors.UpstreamPermanentError{Endpoint: endpoint, StatusCode: 0, Err: chatResp.Error}
	}

	if c.logger != nil {
		if logErr := c.logger.LogInteraction(label, req, &chatResp); logErr != nil {
			fmt.Printf("warning: failed to log LLM interaction: %v\n", logErr)
		}
	}

	return &chatResp, nil
}

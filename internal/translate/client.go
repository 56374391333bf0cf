package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/llm"
)

// TokensUsed breaks down a translation call's token consumption.
type TokensUsed struct {
	Input  int
	Output int
	Total  int
}

// Context carries the continuity input for a translation call: the
// preceding chunk's summary only. A worker never reads any other chunk.
type Context struct {
	PreviousSummary string
}

// Result is the output of a single Translate call.
type Result struct {
	TranslatedText   string
	TokensUsed       TokensUsed
	EstimatedCost    float64
	ProcessingTimeMs int64
}

var errNoChoices = errors.New("llm response contained no choices")

// Client is the Translation Client: prompt construction plus a thin
// cost-model layer over internal/llm's HTTP transport and retry policy.
type Client struct {
	llmClient                  llm.Client
	promptBuilder              *PromptBuilder
	pricePerMillionInputTokens float64
	now                        func() time.Time
}

// NewClient builds a Translation Client. promptBuilder may be nil, in
// which case the embedded default template is used with no external
// override.
func NewClient(llmClient llm.Client, promptBuilder *PromptBuilder, pricePerMillionInputTokens float64) *Client {
	if promptBuilder == nil {
		promptBuilder = NewPromptBuilder("")
	}
	return &Client{
		llmClient:                  llmClient,
		promptBuilder:              promptBuilder,
		pricePerMillionInputTokens: pricePerMillionInputTokens,
		now:                        time.Now,
	}
}

// Translate performs the translate(text, options, context)
// operation for one chunk, tagging the audit log with the job/chunk
// identity so retried calls remain distinguishable.
func (c *Client) Translate(ctx context.Context, jobID string, chunkIndex int, text string, opts Options, chunkCtx Context) (Result, error) {
	opts.Text = text
	opts.ContextBlock = chunkCtx.PreviousSummary

	prompt, err := c.promptBuilder.Build(opts)
	if err != nil {
		return Result{}, err
	}

	start := c.now()

	messages := []llm.ChatMessage{
		{Role: "system", Content: "You are a precise, professional document translator."},
		{Role: "user", Content: prompt},
	}

	label := fmt.Sprintf("job-%s-chunk-%d-%s", jobID, chunkIndex, uuid.NewString())

	resp, err := c.llmClient.ChatCompletionWithLabel(ctx, messages, 0.3, estimateMaxOutputTokens(text), label)
	if err != nil {
		return Result{}, err
	}
	if len(resp.Choices) == 0 {
		return Result{}, &apperrors.UpstreamPermanentError{Endpoint: "chat/completions", StatusCode: 0, Err: errNoChoices}
	}

	elapsed := c.now().Sub(start)

	tokensUsed := TokensUsed{
		Input:  resp.Usage.PromptTokens,
		Output: resp.Usage.CompletionTokens,
		Total:  resp.Usage.TotalTokens,
	}

	return Result{
		TranslatedText:   resp.Choices[0].Message.Content,
		TokensUsed:       tokensUsed,
		EstimatedCost:    estimatedCost(tokensUsed.Input, c.pricePerMillionInputTokens),
		ProcessingTimeMs: elapsed.Milliseconds(),
	}, nil
}

// estimatedCost implements the cost model:
// estimatedCost = tokensUsed.input / 1_000_000 * pricePerMillionInputTokens.
func estimatedCost(inputTokens int, pricePerMillionInputTokens float64) float64 {
	return float64(inputTokens) / 1_000_000 * pricePerMillionInputTokens
}

// estimateMaxOutputTokens bounds the response size generously relative to
// input length; a translation rarely exceeds ~2x the source token count.
func estimateMaxOutputTokens(text string) int {
	estimate := len(text)/3*2 + 256
	if estimate < 512 {
		estimate = 512
	}
	return estimate
}

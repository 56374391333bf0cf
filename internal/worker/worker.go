// Package worker implements the Translation Worker: end-to-end processing
// of exactly one chunk of one job. A worker never reads any chunk or
// translated-chunk object other than the one it was asked to process,
// which is the parallel-safety contract the dispatcher relies on to fan
// workers out concurrently.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lfmt-dev/translate-pipeline/internal/chunking"
	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
	"github.com/lfmt-dev/translate-pipeline/internal/ratelimit"
	"github.com/lfmt-dev/translate-pipeline/internal/storage"
	"github.com/lfmt-dev/translate-pipeline/internal/translate"
)

// promptOverheadTokens is the worker's fixed estimate for the system
// preamble and formatting/delimiter boilerplate around the prompt.
const promptOverheadTokens = 200

// Input identifies exactly one (job, chunk) unit of work.
type Input struct {
	JobID                  string
	UserID                 string
	ChunkIndex             int
	TargetLanguage         string
	Tone                   job.Tone
	AdditionalInstructions string
	PreserveFormatting     bool
}

// Result is the worker's output shape for all paths.
type Result struct {
	Success          bool
	JobID            string
	ChunkIndex       int
	TranslatedKey    string
	TokensUsed       *translate.TokensUsed
	EstimatedCost    float64
	ProcessingTimeMs int64
	Err              error
	Retryable        bool
}

// Worker wires the job store, object store, rate limiter, and translation
// client into the eight-step chunk-processing contract (see ProcessChunk).
type Worker struct {
	jobStore    storage.JobStore
	objectStore storage.ObjectStore
	limiter     *ratelimit.Limiter
	translator  *translate.Client
	tokenizer   chunking.TokenizerInterface
	now         func() time.Time
}

// New builds a Translation Worker.
func New(jobStore storage.JobStore, objectStore storage.ObjectStore, limiter *ratelimit.Limiter, translator *translate.Client, tokenizer chunking.TokenizerInterface) *Worker {
	return &Worker{
		jobStore:    jobStore,
		objectStore: objectStore,
		limiter:     limiter,
		translator:  translator,
		tokenizer:   tokenizer,
		now:         time.Now,
	}
}

// ProcessChunk runs the eight-step contract for one chunk.
func (w *Worker) ProcessChunk(ctx context.Context, in Input) Result {
	start := w.now()

	result, err := w.processChunk(ctx, in)
	result.ProcessingTimeMs = w.now().Sub(start).Milliseconds()
	if err == nil {
		result.Success = true
		return result
	}

	result.Success = false
	result.Err = err
	result.Retryable = apperrors.Retryable(err)

	if !result.Retryable {
		// Best-effort: a failure here must never mask the original error.
		_ = w.jobStore.SetTranslationFailed(ctx, in.JobID, in.UserID, err.Error())
	}

	return result
}

func (w *Worker) processChunk(ctx context.Context, in Input) (Result, error) {
	result := Result{JobID: in.JobID, ChunkIndex: in.ChunkIndex}

	// Step 1: load job.
	j, err := w.jobStore.Get(ctx, in.JobID, in.UserID)
	if err != nil {
		return result, err
	}
	if j.Status != job.StatusChunked && j.Status != job.StatusTranslationInProgress {
		return result, &apperrors.StatePreconditionError{
			JobID: in.JobID,
			Got:   string(j.Status),
			Want:  []string{string(job.StatusChunked), string(job.StatusTranslationInProgress)},
		}
	}
	if in.ChunkIndex < 0 || in.ChunkIndex >= len(j.ChunkKeys) {
		return result, &apperrors.ValidationError{Field: "chunkIndex", Reason: fmt.Sprintf("chunk index %d out of range [0,%d)", in.ChunkIndex, len(j.ChunkKeys))}
	}

	// Step 2: load chunk. Context is the precomputed previousSummary only;
	// no other chunk or translated chunk is ever read.
	chunkKey := j.ChunkKeys[in.ChunkIndex]
	body, _, err := w.objectStore.Get(ctx, chunkKey)
	if err != nil {
		return result, err
	}
	var chunk chunking.Chunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		return result, &apperrors.ValidationError{Field: "chunkKey", Reason: fmt.Sprintf("chunk object at %s is not valid JSON: %v", chunkKey, err)}
	}

	// Step 3: estimate tokens.
	contentTokens := w.tokenizer.CountTokens(chunk.PrimaryContent)
	contextTokens := w.tokenizer.CountTokens(chunk.PreviousSummary)
	estimatedTokens := contentTokens + contextTokens + promptOverheadTokens

	// Step 4: acquire quota. A denial never mutates job state.
	acquired, err := w.limiter.Acquire(ctx, estimatedTokens)
	if err != nil {
		return result, err
	}
	if !acquired.Granted {
		return result, &apperrors.QuotaExhaustedError{Bucket: "rate_limit", RetryAfterMs: acquired.RetryAfterMs}
	}

	// Step 5: translate.
	translated, err := w.translator.Translate(ctx, in.JobID, in.ChunkIndex, chunk.PrimaryContent, translate.Options{
		TargetLanguage:         in.TargetLanguage,
		Tone:                   in.Tone,
		PreserveFormatting:     in.PreserveFormatting,
		AdditionalInstructions: in.AdditionalInstructions,
	}, translate.Context{PreviousSummary: chunk.PreviousSummary})
	if err != nil {
		return result, err
	}

	// Best-effort TPM reconciliation against the actual usage reported by
	// the upstream call; a failure here never fails the chunk.
	_ = w.limiter.Consume(ctx, translated.TokensUsed.Total, estimatedTokens)

	// Step 6: persist translated output. Overwrite is explicitly permitted.
	translatedKey := fmt.Sprintf("translated/%s/chunk-%d.txt", in.JobID, in.ChunkIndex)
	metadata := map[string]string{
		"jobId":          in.JobID,
		"chunkIndex":     fmt.Sprintf("%d", in.ChunkIndex),
		"sourceLanguage": "auto",
		"targetLanguage": in.TargetLanguage,
		"tokensUsed":     fmt.Sprintf("%d", translated.TokensUsed.Total),
		"estimatedCost":  fmt.Sprintf("%f", translated.EstimatedCost),
		"translatedAt":   w.now().UTC().Format(time.RFC3339),
	}
	if err := w.objectStore.Put(ctx, translatedKey, []byte(translated.TranslatedText), metadata); err != nil {
		return result, err
	}

	// Step 7: advance progress, idempotently per (jobId, chunkIndex).
	_, _, err = w.jobStore.IncrementProgress(ctx, in.JobID, in.UserID, in.ChunkIndex, int64(translated.TokensUsed.Total), translated.EstimatedCost)
	if err != nil {
		return result, err
	}

	// Step 8: return success.
	result.TranslatedKey = translatedKey
	result.TokensUsed = &translated.TokensUsed
	result.EstimatedCost = translated.EstimatedCost
	return result, nil
}

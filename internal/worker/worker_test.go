package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lfmt-dev/translate-pipeline/internal/chunking"
	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
	"github.com/lfmt-dev/translate-pipeline/internal/llm"
	"github.com/lfmt-dev/translate-pipeline/internal/llmlogger"
	"github.com/lfmt-dev/translate-pipeline/internal/ratelimit"
	"github.com/lfmt-dev/translate-pipeline/internal/storage"
	"github.com/lfmt-dev/translate-pipeline/internal/translate"
)

type fakeLLMClient struct {
	content string
}

func (f *fakeLLMClient) ChatCompletion(ctx context.Context, messages []llm.ChatMessage, temperature float64, maxTokens int) (*llm.ChatResponse, error) {
	return f.ChatCompletionWithLabel(ctx, messages, temperature, maxTokens, "")
}

func (f *fakeLLMClient) ChatCompletionWithLabel(_ context.Context, _ []llm.ChatMessage, _ float64, _ int, _ string) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.ChatMessage{Role: "assistant", Content: f.content}}},
		Usage:   llm.TokenUsage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60},
	}, nil
}

func (f *fakeLLMClient) SetLogger(_ *llmlogger.Logger) {}

func newTestWorker(t *testing.T) (*Worker, storage.JobStore, storage.ObjectStore) {
	t.Helper()

	jobStore := storage.NewMemoryJobStore()
	objectStore, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{
		APIID:              "test-api",
		RequestsPerMinute:  1000,
		TokensPerMinute:    1_000_000,
		RequestsPerDay:     10000,
		DailyResetTimezone: "UTC",
	})
	require.NoError(t, err)

	translator := translate.NewClient(&fakeLLMClient{content: "translated text"}, nil, 0.075)
	tokenizer, err := chunking.NewTokenizer("gpt-4o-mini")
	require.NoError(t, err)

	w := New(jobStore, objectStore, limiter, translator, tokenizer)
	return w, jobStore, objectStore
}

func putTestJobAndChunk(t *testing.T, jobStore storage.JobStore, objectStore storage.ObjectStore, status job.Status) job.Job {
	t.Helper()
	ctx := context.Background()

	chunk := chunking.Chunk{
		ChunkID:         "chunk-0",
		ChunkIndex:      0,
		TotalChunks:     1,
		PrimaryContent:  "Hello, world.",
		PreviousSummary: "",
	}
	chunkBody, err := json.Marshal(chunk)
	require.NoError(t, err)
	require.NoError(t, objectStore.Put(ctx, "chunks/job-1/chunk-0.json", chunkBody, nil))

	j := job.Job{
		JobID:          "job-1",
		UserID:         "user-1",
		Status:         status,
		TargetLanguage: "es",
		Tone:           job.ToneNeutral,
		TotalChunks:    1,
		ChunkKeys:      []string{"chunks/job-1/chunk-0.json"},
	}
	require.NoError(t, jobStore.PutNew(ctx, &j))
	return j
}

func TestWorker_ProcessChunk_Success(t *testing.T) {
	w, jobStore, objectStore := newTestWorker(t)
	putTestJobAndChunk(t, jobStore, objectStore, job.StatusChunked)

	result := w.ProcessChunk(context.Background(), Input{
		JobID:          "job-1",
		UserID:         "user-1",
		ChunkIndex:     0,
		TargetLanguage: "es",
		Tone:           job.ToneNeutral,
	})

	require.True(t, result.Success, "expected success, got error: %v", result.Err)
	require.Equal(t, "translated/job-1/chunk-0.txt", result.TranslatedKey)
	require.NotNil(t, result.TokensUsed)
	require.Equal(t, 60, result.TokensUsed.Total)

	body, _, err := objectStore.Get(context.Background(), result.TranslatedKey)
	require.NoError(t, err)
	require.Equal(t, "translated text", string(body))

	updated, err := jobStore.Get(context.Background(), "job-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, job.StatusTranslationCompleted, updated.Status)
	require.Equal(t, 1, updated.TranslatedChunks)
}

func TestWorker_ProcessChunk_RejectsJobInWrongState(t *testing.T) {
	w, jobStore, objectStore := newTestWorker(t)
	putTestJobAndChunk(t, jobStore, objectStore, job.StatusPendingUpload)

	result := w.ProcessChunk(context.Background(), Input{
		JobID:          "job-1",
		UserID:         "user-1",
		ChunkIndex:     0,
		TargetLanguage: "es",
		Tone:           job.ToneNeutral,
	})

	require.False(t, result.Success)
	require.False(t, result.Retryable)

	var statePrecondition *apperrors.StatePreconditionError
	require.ErrorAs(t, result.Err, &statePrecondition)
}

func TestWorker_ProcessChunk_MissingJobIsNonRetryable(t *testing.T) {
	w, jobStore, _ := newTestWorker(t)

	result := w.ProcessChunk(context.Background(), Input{
		JobID:          "missing-job",
		UserID:         "user-1",
		ChunkIndex:     0,
		TargetLanguage: "es",
		Tone:           job.ToneNeutral,
	})

	require.False(t, result.Success)
	require.False(t, result.Retryable)

	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, result.Err, &notFound)

	// A job that never existed cannot be transitioned to TRANSLATION_FAILED;
	// the best-effort write fails silently and the original error surfaces.
	_, err := jobStore.Get(context.Background(), "missing-job", "user-1")
	require.Error(t, err)
}

func TestWorker_ProcessChunk_OutOfRangeChunkIndexIsValidationError(t *testing.T) {
	w, jobStore, objectStore := newTestWorker(t)
	putTestJobAndChunk(t, jobStore, objectStore, job.StatusChunked)

	result := w.ProcessChunk(context.Background(), Input{
		JobID:          "job-1",
		UserID:         "user-1",
		ChunkIndex:     5,
		TargetLanguage: "es",
		Tone:           job.ToneNeutral,
	})

	require.False(t, result.Success)
	require.False(t, result.Retryable)

	var validation *apperrors.ValidationError
	require.ErrorAs(t, result.Err, &validation)
}

func TestWorker_ProcessChunk_IsIdempotentAcrossRetries(t *testing.T) {
	w, jobStore, objectStore := newTestWorker(t)
	putTestJobAndChunk(t, jobStore, objectStore, job.StatusChunked)

	in := Input{JobID: "job-1", UserID: "user-1", ChunkIndex: 0, TargetLanguage: "es", Tone: job.ToneNeutral}

	first := w.ProcessChunk(context.Background(), in)
	require.True(t, first.Success)

	// The single-chunk job is now TRANSLATION_COMPLETED, so the retry is
	// rejected at step 1 and must leave the recorded usage untouched.
	second := w.ProcessChunk(context.Background(), in)
	require.False(t, second.Success)

	updated, err := jobStore.Get(context.Background(), "job-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(60), updated.TokensUsed, "retrying a completed chunk must not double-count tokens")
}

package dispatcher

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
	"github.com/lfmt-dev/translate-pipeline/internal/worker"
)

type fakeLLMClient struct{}

func (f *fakeLLMClient) ChatCompletion(ctx context.Context, messages []llm.ChatMessage, temperature float64, maxTokens int) (*llm.ChatResponse, error) {
	return f.ChatCompletionWithLabel(ctx, messages, temperature, maxTokens, "")
}

func (f *fakeLLMClient) ChatCompletionWithLabel(_ context.Context, _ []llm.ChatMessage, _ float64, _ int, _ string) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.ChatMessage{Role: "assistant", Content: "translated"}}},
		Usage:   llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeLLMClient) SetLogger(_ *llmlogger.Logger) {}

func newTestDispatcher(t *testing.T, concurrency int) (*Dispatcher, storage.JobStore, storage.ObjectStore) {
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

	tokenizer, err := chunking.NewTokenizer("gpt-4o-mini")
	require.NoError(t, err)

	translator := translate.NewClient(&fakeLLMClient{}, nil, 0.075)
	w := worker.New(jobStore, objectStore, limiter, translator, tokenizer)

	d := New(jobStore, w, Config{Concurrency: concurrency})
	return d, jobStore, objectStore
}

func putMultiChunkJob(t *testing.T, jobStore storage.JobStore, objectStore storage.ObjectStore, totalChunks int) {
	t.Helper()
	ctx := context.Background()

	chunkKeys := make([]string, totalChunks)
	for i := 0; i < totalChunks; i++ {
		chunk := chunking.Chunk{ChunkID: "chunk", ChunkIndex: i, TotalChunks: totalChunks, PrimaryContent: "Hello chunk."}
		body, err := json.Marshal(chunk)
		require.NoError(t, err)
		key := "chunks/job-1/chunk-" + string(rune('0'+i)) + ".json"
		require.NoError(t, objectStore.Put(ctx, key, body, nil))
		chunkKeys[i] = key
	}

	j := job.Job{
		JobID:          "job-1",
		UserID:         "user-1",
		Status:         job.StatusChunking,
		TargetLanguage: "es",
		Tone:           job.ToneNeutral,
		TotalChunks:    totalChunks,
		ChunkKeys:      chunkKeys,
	}
	require.NoError(t, jobStore.PutNew(ctx, &j))
	require.NoError(t, jobStore.SetChunked(ctx, j.JobID, j.UserID, chunkKeys, 100, 10, 5))
}

func TestDispatcher_Dispatch_AllChunksSucceed(t *testing.T) {
	d, jobStore, objectStore := newTestDispatcher(t, 2)
	putMultiChunkJob(t, jobStore, objectStore, 3)

	summary, err := d.Dispatch(context.Background(), Request{
		JobID:          "job-1",
		UserID:         "user-1",
		TargetLanguage: "es",
		Tone:           job.ToneNeutral,
	})
	require.NoError(t, err)
	require.Equal(t, 3, summary.Dispatched)
	require.Equal(t, 3, summary.Succeeded)
	require.Equal(t, 0, summary.Failed)
	require.Equal(t, job.StatusTranslationCompleted, summary.FinalStatus)

	updated, err := jobStore.Get(context.Background(), "job-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, updated.TranslatedChunks)
}

func TestDispatcher_Dispatch_RejectsNonDispatchableJob(t *testing.T) {
	d, jobStore, objectStore := newTestDispatcher(t, 2)
	putMultiChunkJob(t, jobStore, objectStore, 1)
	require.NoError(t, jobStore.SetChunkingFailed(context.Background(), "job-1", "user-1", "boom"))

	_, err := d.Dispatch(context.Background(), Request{JobID: "job-1", UserID: "user-1", TargetLanguage: "es", Tone: job.ToneNeutral})
	require.Error(t, err)
	var statePrecondition *apperrors.StatePreconditionError
	require.ErrorAs(t, err, &statePrecondition)
}

func TestDispatcher_Dispatch_SkipsAlreadyProcessedChunks(t *testing.T) {
	d, jobStore, objectStore := newTestDispatcher(t, 2)
	putMultiChunkJob(t, jobStore, objectStore, 2)

	alreadyProcessed, completed, err := jobStore.IncrementProgress(context.Background(), "job-1", "user-1", 0, 10, 0.01)
	require.NoError(t, err)
	require.False(t, alreadyProcessed)
	require.False(t, completed, "a 2-chunk job should not be complete after 1 increment")

	summary, err := d.Dispatch(context.Background(), Request{JobID: "job-1", UserID: "user-1", TargetLanguage: "es", Tone: job.ToneNeutral})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Dispatched, "only the un-processed chunk should be dispatched")
	require.Equal(t, 1, summary.ChunkOutcomes[0].ChunkIndex)
}

func TestDispatcher_Dispatch_NoPendingChunksIsNoOp(t *testing.T) {
	d, jobStore, objectStore := newTestDispatcher(t, 2)
	putMultiChunkJob(t, jobStore, objectStore, 1)

	_, _, err := jobStore.IncrementProgress(context.Background(), "job-1", "user-1", 0, 10, 0.01)
	require.NoError(t, err)

	summary, err := d.Dispatch(context.Background(), Request{JobID: "job-1", UserID: "user-1", TargetLanguage: "es", Tone: job.ToneNeutral})
	require.NoError(t, err)
	require.Equal(t, 0, summary.Dispatched)
}

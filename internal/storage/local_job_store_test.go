package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
)

func TestLocalJobStore_PutNewAndGet(t *testing.T) {
	store, err := NewLocalJobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.PutNew(ctx, newTestJob()))

	got, err := store.Get(ctx, "job-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusChunking, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestLocalJobStore_PutNewRejectsDuplicate(t *testing.T) {
	store, err := NewLocalJobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.PutNew(ctx, newTestJob()))
	err = store.PutNew(ctx, newTestJob())
	require.Error(t, err)
	assert.True(t, apperrors.Retryable(err))
}

func TestLocalJobStore_GetMissingReturnsNotFound(t *testing.T) {
	store, err := NewLocalJobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing", "user-1")
	require.Error(t, err)
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestLocalJobStore_SurvivesAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewLocalJobStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.PutNew(ctx, newTestJob()))

	second, err := NewLocalJobStore(dir)
	require.NoError(t, err)
	got, err := second.Get(ctx, "job-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusChunking, got.Status)
}

func TestLocalJobStore_SetChunkedRequiresChunkingStatus(t *testing.T) {
	store, err := NewLocalJobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	j := newTestJob()
	j.Status = job.StatusChunked
	require.NoError(t, store.PutNew(ctx, j))

	err = store.SetChunked(ctx, "job-1", "user-1", []string{"chunks/0.json"}, 100, 100, 5)
	require.Error(t, err)
	var spe *apperrors.StatePreconditionError
	assert.ErrorAs(t, err, &spe)
}

func TestLocalJobStore_IncrementProgressIsIdempotentPerChunk(t *testing.T) {
	store, err := NewLocalJobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.PutNew(ctx, newTestJob()))
	require.NoError(t, store.SetChunked(ctx, "job-1", "user-1", []string{"a", "b"}, 100, 50, 1))

	already, completed, err := store.IncrementProgress(ctx, "job-1", "user-1", 0, 10, 0.5)
	require.NoError(t, err)
	assert.False(t, already)
	assert.False(t, completed)

	already, completed, err = store.IncrementProgress(ctx, "job-1", "user-1", 0, 10, 0.5)
	require.NoError(t, err)
	assert.True(t, already)
	assert.False(t, completed)

	already, completed, err = store.IncrementProgress(ctx, "job-1", "user-1", 1, 20, 0.75)
	require.NoError(t, err)
	assert.False(t, already)
	assert.True(t, completed)

	got, err := store.Get(ctx, "job-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusTranslationCompleted, got.Status)
	assert.Equal(t, 2, got.TranslatedChunks)
	assert.NotNil(t, got.TranslationCompletedAt)
}

func TestLocalJobStore_SetTranslationFailedIsBestEffortOnTerminalJob(t *testing.T) {
	store, err := NewLocalJobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.PutNew(ctx, newTestJob()))
	require.NoError(t, store.SetChunked(ctx, "job-1", "user-1", []string{"a"}, 10, 10, 1))
	_, _, err = store.IncrementProgress(ctx, "job-1", "user-1", 0, 10, 0.1)
	require.NoError(t, err)

	require.NoError(t, store.SetTranslationFailed(ctx, "job-1", "user-1", "should not apply"))

	got, err := store.Get(ctx, "job-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusTranslationCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

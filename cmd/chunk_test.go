package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmt-dev/translate-pipeline/internal/job"
	"github.com/lfmt-dev/translate-pipeline/internal/storage"
)

func TestChunkCmd_Structure(t *testing.T) {
	t.Parallel()

	if chunkCmd.Use != "chunk <jobId>" {
		t.Errorf("Expected command use 'chunk <jobId>', got '%s'", chunkCmd.Use)
	}
	if chunkCmd.Short == "" {
		t.Error("Expected command short description to be set")
	}
}

func TestValidateSourceMetadata(t *testing.T) {
	t.Parallel()

	t.Run("all required keys present", func(t *testing.T) {
		t.Parallel()
		err := validateSourceMetadata(map[string]string{"userid": "u1", "jobid": "j1", "fileid": "f1"})
		assert.NoError(t, err)
	})

	for _, key := range []string{"userid", "jobid", "fileid"} {
		key := key
		t.Run("missing "+key, func(t *testing.T) {
			t.Parallel()
			metadata := map[string]string{"userid": "u1", "jobid": "j1", "fileid": "f1"}
			delete(metadata, key)
			err := validateSourceMetadata(metadata)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestCombineErrors(t *testing.T) {
	t.Parallel()

	primary := assert.AnError
	assert.Equal(t, primary, combineErrors(primary, nil))

	combined := combineErrors(primary, assert.AnError)
	assert.Contains(t, combined.Error(), "additionally")
}

func TestEnsureJobForChunking_CreatesNewJob(t *testing.T) {
	jobStore := storage.NewMemoryJobStore()
	w := &wiring{jobStore: jobStore}

	originalUserID := chunkUserID
	chunkUserID = "alice"
	defer func() { chunkUserID = originalUserID }()

	ctx := context.Background()
	j, err := ensureJobForChunking(ctx, w, "job-new")
	require.NoError(t, err)
	assert.Equal(t, "job-new", j.JobID)
	assert.Equal(t, "alice", j.UserID)
	assert.Equal(t, job.StatusChunking, j.Status)

	stored, err := jobStore.Get(ctx, "job-new", "alice")
	require.NoError(t, err)
	assert.Equal(t, job.StatusChunking, stored.Status)
}

func TestEnsureJobForChunking_ReturnsExisting(t *testing.T) {
	jobStore := storage.NewMemoryJobStore()
	w := &wiring{jobStore: jobStore}

	originalUserID := chunkUserID
	chunkUserID = "bob"
	defer func() { chunkUserID = originalUserID }()

	ctx := context.Background()
	existing := &job.Job{JobID: "job-existing", UserID: "bob", Status: job.StatusChunked}
	require.NoError(t, jobStore.PutNew(ctx, existing))

	j, err := ensureJobForChunking(ctx, w, "job-existing")
	require.NoError(t, err)
	assert.Equal(t, job.StatusChunked, j.Status)
}

func TestRunChunk_EndToEnd(t *testing.T) {
	cfg = newTestConfig(t)
	defer func() { cfg = nil }()

	originalUserID, originalFileID, originalFile := chunkUserID, chunkFileID, chunkFile
	chunkUserID = "alice"
	chunkFileID = "doc-1"
	chunkFile = ""
	defer func() { chunkUserID, chunkFileID, chunkFile = originalUserID, originalFileID, originalFile }()

	objectStore, err := storage.NewLocalObjectStore(cfg.Storage.LocalObjectDir)
	require.NoError(t, err)

	sourceText := "This is the first sentence of the document. Here is a second sentence for good measure."
	ctx := context.Background()
	require.NoError(t, objectStore.Put(ctx, "uploads/alice/doc-1/job-chunk-1", []byte(sourceText), map[string]string{
		"userid": "alice",
		"jobid":  "job-chunk-1",
		"fileid": "doc-1",
	}))

	err = runChunk(chunkCmd, []string{"job-chunk-1"})
	require.NoError(t, err)

	jobStore, err := storage.NewLocalJobStore(cfg.Storage.LocalKVDir)
	require.NoError(t, err)
	j, err := jobStore.Get(ctx, "job-chunk-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, job.StatusChunked, j.Status)
	assert.NotEmpty(t, j.ChunkKeys)
	assert.Equal(t, len(j.ChunkKeys), j.TotalChunks)
}

func TestRunChunk_MissingMetadataFailsJob(t *testing.T) {
	cfg = newTestConfig(t)
	defer func() { cfg = nil }()

	originalUserID, originalFileID, originalFile := chunkUserID, chunkFileID, chunkFile
	chunkUserID = "carol"
	chunkFileID = "doc-2"
	chunkFile = ""
	defer func() { chunkUserID, chunkFileID, chunkFile = originalUserID, originalFileID, originalFile }()

	objectStore, err := storage.NewLocalObjectStore(cfg.Storage.LocalObjectDir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, objectStore.Put(ctx, "uploads/carol/doc-2/job-chunk-2", []byte("a sentence."), nil))

	err = runChunk(chunkCmd, []string{"job-chunk-2"})
	require.Error(t, err)

	jobStore, err := storage.NewLocalJobStore(cfg.Storage.LocalKVDir)
	require.NoError(t, err)
	j, err := jobStore.Get(ctx, "job-chunk-2", "carol")
	require.NoError(t, err)
	assert.Equal(t, job.StatusChunkingFailed, j.Status)
}

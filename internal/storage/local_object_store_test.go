package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
)

func TestLocalObjectStore_PutGetRoundTrip(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	body := []byte("hola mundo")
	meta := map[string]string{"userid": "u1", "jobid": "j1"}
	require.NoError(t, store.Put(ctx, "uploads/j1/source.txt", body, meta))

	gotBody, gotMeta, err := store.Get(ctx, "uploads/j1/source.txt")
	require.NoError(t, err)
	assert.Equal(t, body, gotBody)
	assert.Equal(t, meta, gotMeta)
}

func TestLocalObjectStore_GetMissingReturnsNotFound(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "does/not/exist.txt")
	require.Error(t, err)
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestLocalObjectStore_HeadReturnsMetadataWithoutBody(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "chunks/j1/0.json", []byte("{}"), map[string]string{"chunkIndex": "0"}))

	meta, err := store.Head(ctx, "chunks/j1/0.json")
	require.NoError(t, err)
	assert.Equal(t, "0", meta["chunkIndex"])
}

func TestLocalObjectStore_PutOverwritesExistingKey(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "translated/j1/chunk-0.txt", []byte("first"), nil))
	require.NoError(t, store.Put(ctx, "translated/j1/chunk-0.txt", []byte("second"), nil))

	body, _, err := store.Get(ctx, "translated/j1/chunk-0.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), body)
}

func TestLocalObjectStore_NestedKeysCreateDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalObjectStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "a/b/c/d.txt", []byte("x"), nil))
	assert.FileExists(t, filepath.Join(dir, "a", "b", "c", "d.txt"))
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStores(t *testing.T) {
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	stores := map[string]BlobStore{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "missing.json")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "doc.json", []byte(`{"a":1}`)))
			got, err := store.Get(ctx, "doc.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(got))

			require.NoError(t, store.Put(ctx, "doc.json", []byte(`{"b":2}`)))
			got, err = store.Get(ctx, "doc.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"b":2}`, string(got))

			require.NoError(t, store.Delete(ctx, "doc.json"))
			require.NoError(t, store.Delete(ctx, "doc.json"), "delete is idempotent")
			_, err = store.Get(ctx, "doc.json")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "job_history.json", []byte("{}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "job_history.json", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, "job_history.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Put(context.Background(), "../escape.json", []byte("x")))
	assert.Error(t, store.Put(context.Background(), "a/b.json", []byte("x")))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "s3"})
	assert.Error(t, err)
}

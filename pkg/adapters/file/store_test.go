package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/pkg/adapters/file"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunExecutionStoreContract(t, store)
}

func TestFileStore_RejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	store := file.New(t.TempDir())
	snap := &domain.Snapshot{FlowID: "F"}

	for _, key := range []string{"", "../escape", `a\b`, ".."} {
		assert.Error(t, store.Save(ctx, key, snap), key)
		_, err := store.Load(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestFileStore_ListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.New(dir)

	require.NoError(t, store.Save(ctx, "real", &domain.Snapshot{Key: "real", FlowID: "F"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-real-123.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, keys)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	keys, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

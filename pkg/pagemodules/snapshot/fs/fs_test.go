package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/snapshot/fs"
)

func TestFSStore(t *testing.T) {
	baseDir := t.TempDir()
	store, err := fs.New(fs.Config{BaseDir: baseDir})
	require.NoError(t, err)
	ctx := context.Background()
	key := "pages/0d6c/tree.json"

	t.Run("Put", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, key, strings.NewReader(`{"modules":[]}`)))
		require.NoError(t, store.Put(ctx, key, strings.NewReader(`{"modules":[{}]}`)))

		raw, err := os.ReadFile(filepath.Join(baseDir, "pages", "0d6c", "tree.json"))
		require.NoError(t, err)
		assert.Equal(t, `{"modules":[{}]}`, string(raw))

		entries, err := os.ReadDir(filepath.Join(baseDir, "pages", "0d6c"))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temporary files left behind")
	})

	t.Run("Get", func(t *testing.T) {
		rc, err := store.Get(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, `{"modules":[{}]}`, string(data))
	})

	t.Run("RejectsEscapingKeys", func(t *testing.T) {
		assert.Error(t, store.Put(ctx, "../outside.json", strings.NewReader("x")))
		assert.Error(t, store.Put(ctx, "/abs.json", strings.NewReader("x")))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, pagemodules.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, key), pagemodules.ErrNotFound)
	})
}

func TestFSStore_RequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}

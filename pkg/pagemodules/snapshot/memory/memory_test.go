package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/snapshot/memory"
)

func TestMemoryStore(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	key := "pages/abc/tree.json"

	t.Run("Put", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, key, strings.NewReader(`{"modules":[]}`)))
		require.NoError(t, store.Put(ctx, key, strings.NewReader(`{"modules":[1]}`)))
		assert.Equal(t, []string{key}, store.Keys())
	})

	t.Run("Get", func(t *testing.T) {
		rc, err := store.Get(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, `{"modules":[1]}`, string(data))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, pagemodules.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, key), pagemodules.ErrNotFound)
	})
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every ProductStore engine must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) ProductStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("insert assigns distinct increasing IDs", func(t *testing.T) {
		s := newStore(t)
		first, err := s.Insert(ctx, "Widget", 5)
		require.NoError(t, err)
		second, err := s.Insert(ctx, "Widget", 0)
		require.NoError(t, err)

		assert.NotZero(t, first.ID)
		assert.Greater(t, second.ID, first.ID)
		assert.Equal(t, "Widget", second.ProductName)
		assert.Equal(t, int32(0), second.Quantity)
	})

	t.Run("find by name is exact and case-sensitive", func(t *testing.T) {
		s := newStore(t)
		for _, name := range []string{"Widget", "widget", "Widgets", "Widget"} {
			_, err := s.Insert(ctx, name, 1)
			require.NoError(t, err)
		}

		found, err := s.FindByName(ctx, "Widget")
		require.NoError(t, err)
		require.Len(t, found, 2)
		for _, p := range found {
			assert.Equal(t, "Widget", p.ProductName)
		}
		assert.Less(t, found[0].ID, found[1].ID)
	})

	t.Run("find by name without matches returns empty slice", func(t *testing.T) {
		s := newStore(t)
		found, err := s.FindByName(ctx, "Nothing")
		require.NoError(t, err)
		assert.NotNil(t, found)
		assert.Empty(t, found)
	})

	t.Run("delete by name removes every match", func(t *testing.T) {
		s := newStore(t)
		_, _ = s.Insert(ctx, "Gadget", 1)
		_, _ = s.Insert(ctx, "Widget", 2)
		_, _ = s.Insert(ctx, "Gadget", 3)

		count, err := s.DeleteByName(ctx, "Gadget")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Widget", all[0].ProductName)
	})

	t.Run("delete by name without matches is not an error", func(t *testing.T) {
		s := newStore(t)
		count, err := s.DeleteByName(ctx, "Nothing")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("find all keeps insertion order", func(t *testing.T) {
		s := newStore(t)
		names := []string{"C", "A", "B"}
		for i, name := range names {
			_, err := s.Insert(ctx, name, int32(i))
			require.NoError(t, err)
		}

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, p := range all {
			assert.Equal(t, names[i], p.ProductName)
			assert.Equal(t, int32(i), p.Quantity)
		}
	})

	t.Run("IDs are not reused after delete", func(t *testing.T) {
		s := newStore(t)
		first, err := s.Insert(ctx, "Temp", 1)
		require.NoError(t, err)
		_, err = s.DeleteByName(ctx, "Temp")
		require.NoError(t, err)
		second, err := s.Insert(ctx, "Temp", 1)
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)
	})
}

func Test_InMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ProductStore {
		return NewInMemoryStore()
	})
}

func Test_SqliteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ProductStore {
		s, err := OpenSqlite(context.Background(), t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

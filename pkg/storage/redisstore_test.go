package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moveout/pkg/errors"
	"moveout/pkg/models"
)

// openTestRedis connects to the server named by MOVEOUT_TEST_REDIS_ADDR using
// a throwaway key prefix.
func openTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("MOVEOUT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MOVEOUT_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	prefix := "moveout-test-" + uuid.NewString()
	s, err := OpenRedisStore(ctx, RedisOptions{Addr: addr, Prefix: prefix})
	require.NoError(t, err)

	t.Cleanup(func() {
		s.client.Del(ctx, s.itemsKey(), s.draftKey(), s.schemaKey(), s.legacyDraftsKey())
		s.Close()
	})
	return s
}

func TestRedisStore(t *testing.T) {
	s := openTestRedis(t)
	ctx := context.Background()

	t.Run("round trip and delete", func(t *testing.T) {
		item := newTestItem(t, "kettle")
		require.NoError(t, s.Put(ctx, item))

		items, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, item.Title, items[0].Title)

		require.NoError(t, s.Delete(ctx, item.ID))
		require.NoError(t, s.Delete(ctx, item.ID))

		_, err = s.Get(ctx, item.ID)
		assert.True(t, errors.Is(err, errors.ErrItemNotFound))
	})

	t.Run("update toggles in a transaction", func(t *testing.T) {
		item := newTestItem(t, "mirror")
		require.NoError(t, s.Put(ctx, item))

		updated, err := s.Update(ctx, item.ID, func(i *models.SaleItem) error {
			i.IsSold = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, updated.IsSold)
	})

	t.Run("draft slot", func(t *testing.T) {
		require.NoError(t, s.PutDraft(ctx, newTestItem(t, "a")))
		latest := newTestItem(t, "b")
		require.NoError(t, s.PutDraft(ctx, latest))

		draft, err := s.GetLatestDraft(ctx)
		require.NoError(t, err)
		require.NotNil(t, draft)
		assert.Equal(t, latest.ID, draft.ID)

		require.NoError(t, s.ClearDrafts(ctx))
		draft, err = s.GetLatestDraft(ctx)
		require.NoError(t, err)
		assert.Nil(t, draft)
	})
}

package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/internal/testutil"
)

func TestRedisCacheRepo_SetGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	repo := NewRedisCacheRepo(client, "test:")
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		ttl := 5 * time.Minute
		require.NoError(t, repo.Set(ctx, "channel:veritasium", []byte(`{"channelId":"UC1"}`), ttl))

		result, err := repo.Get(ctx, "channel:veritasium")
		require.NoError(t, err)
		assert.JSONEq(t, `{"channelId":"UC1"}`, string(result))

		actualTTL := client.TTL(ctx, "test:cache:channel:veritasium").Val()
		assert.True(t, actualTTL > 0 && actualTTL <= ttl)
	})

	t.Run("get non-existent key", func(t *testing.T) {
		result, err := repo.Get(ctx, "channel:missing")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "channel:gone", []byte("x"), time.Minute))

		deleted, err := repo.Delete(ctx, "channel:gone")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "channel:gone")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("empty key", func(t *testing.T) {
		require.Error(t, repo.Set(ctx, "", []byte("x"), time.Minute))
		_, err := repo.Get(ctx, "")
		require.Error(t, err)
	})
}

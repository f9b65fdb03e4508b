package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/illmade-knight/go-postcache/pkg/cache"
	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, prefix string) (*cache.RedisCache[string, []types.Item], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache[string, []types.Item](
		context.Background(),
		&cache.RedisConfig{Addr: mr.Addr(), KeyPrefix: prefix},
		zerolog.Nop(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	items := []types.Item{
		{
			ID:        "1",
			Text:      "hello",
			CreatedAt: time.Date(2025, 6, 13, 12, 0, 0, 0, time.UTC),
			Author:    "@BeatHammer",
			Media:     []types.MediaAttachment{{MediaKey: "m1", Type: types.MediaPhoto, URL: "https://img/1.jpg"}},
		},
	}

	t.Run("Set and Fetch", func(t *testing.T) {
		c, _ := newTestRedisCache(t, "posts:")

		require.NoError(t, c.Set(ctx, "recent", items, time.Minute))
		got, err := c.Fetch(ctx, "recent")

		require.NoError(t, err)
		assert.Equal(t, items, got)
	})

	t.Run("Fetch Miss", func(t *testing.T) {
		c, _ := newTestRedisCache(t, "posts:")

		_, err := c.Fetch(ctx, "non-existent-key")

		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("TTL Expires", func(t *testing.T) {
		c, mr := newTestRedisCache(t, "posts:")
		require.NoError(t, c.Set(ctx, "recent", items, time.Minute))

		mr.FastForward(time.Minute + time.Second)

		_, err := c.Fetch(ctx, "recent")
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("Clear only removes prefixed keys", func(t *testing.T) {
		c, mr := newTestRedisCache(t, "posts:")
		require.NoError(t, c.Set(ctx, "recent", items, time.Minute))
		require.NoError(t, mr.Set("other:key", "keep"))

		require.NoError(t, c.Clear(ctx))

		_, err := c.Fetch(ctx, "recent")
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
		assert.True(t, mr.Exists("other:key"))
	})

	t.Run("Corrupt value is an error, not a miss", func(t *testing.T) {
		c, mr := newTestRedisCache(t, "posts:")
		require.NoError(t, mr.Set("posts:recent", "{not json"))

		_, err := c.Fetch(ctx, "recent")

		require.Error(t, err)
		assert.NotErrorIs(t, err, cache.ErrCacheMiss)
	})
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := cache.NewRedisCache[string, string](context.Background(), &cache.RedisConfig{Addr: addr, KeyPrefix: "posts:"}, zerolog.Nop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestNewRedisCache_RequiresKeyPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("session:42", "alive"))

	c, err := cache.NewRedisCache[string, string](ctx, &cache.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())

	require.ErrorIs(t, err, cache.ErrMissingKeyPrefix)
	assert.Nil(t, c)
	assert.True(t, mr.Exists("session:42"))
}

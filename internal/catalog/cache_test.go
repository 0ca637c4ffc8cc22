package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &memoryCache{items: make(map[string]cacheEntry), now: func() time.Time { return now }}
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_ZeroTTLSkipsStore(t *testing.T) {
	c := NewMemoryCache()
	c.Set(context.Background(), "k", []byte("v"), 0)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	c.Set(ctx, "k", []byte("abc"), time.Minute)
	got, _ := c.Get(ctx, "k")
	got[0] = 'z'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, newRedisCache(client, "", zerolog.Nop())
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "/movies", []byte(`[]`), time.Minute)
	assert.True(t, mr.Exists("reelstream:catalog:/movies"))

	got, ok := c.Get(ctx, "/movies")
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), got)

	c.Delete(ctx, "/movies")
	_, ok = c.Get(ctx, "/movies")
	assert.False(t, ok)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "/movies/1", []byte(`{}`), 30*time.Second)
	mr.FastForward(31 * time.Second)
	_, ok := c.Get(ctx, "/movies/1")
	assert.False(t, ok)
}

func TestRedisCache_UnavailableIsMiss(t *testing.T) {
	mr, c := setupMiniRedis(t)
	mr.Close()
	_, ok := c.Get(context.Background(), "/movies")
	assert.False(t, ok)
}

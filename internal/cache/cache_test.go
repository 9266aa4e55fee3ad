package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*PermissionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ttl), mr
}

func TestCacheSetGet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	perms := map[string]int{"users": 1, "profiles": 0}
	require.True(t, c.Set(ctx, ProfileKey(1), perms))

	got, ok := c.Get(ctx, ProfileKey(1))
	require.True(t, ok)
	require.Equal(t, perms, got)
}

func TestCacheMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	got, ok := c.Get(context.Background(), ProfileKey(404))
	require.False(t, ok)
	require.Nil(t, got)
}

func TestCacheNilValueIsAHit(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	// A profile known to define no permissions is cached as nil; the hit
	// still counts so the store is not re-queried.
	require.True(t, c.Set(ctx, ProfileKey(2), nil))

	got, ok := c.Get(ctx, ProfileKey(2))
	require.True(t, ok)
	require.Nil(t, got)
}

func TestCacheStaleEntryRemoved(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.True(t, c.Set(ctx, ProfileKey(3), map[string]int{"users": 1}))

	// Advance past the TTL: the read misses and removes the entry.
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok := c.Get(ctx, ProfileKey(3))
	require.False(t, ok)
	require.False(t, mr.Exists(ProfileKey(3)))
}

func TestCacheFreshWithinTTL(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.True(t, c.Set(ctx, ProfileKey(4), map[string]int{"users": 1}))

	c.now = func() time.Time { return time.Now().Add(30 * time.Second) }
	_, ok := c.Get(ctx, ProfileKey(4))
	require.True(t, ok)
}

func TestCacheCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, mr.Set(ProfileKey(5), "not json"))
	_, ok := c.Get(context.Background(), ProfileKey(5))
	require.False(t, ok)

	// An envelope without a timestamp is equally unusable.
	require.NoError(t, mr.Set(ProfileKey(6), `{"value":{"users":1}}`))
	_, ok = c.Get(context.Background(), ProfileKey(6))
	require.False(t, ok)
}

func TestCacheDeleteIdempotent(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.True(t, c.Set(ctx, ProfileKey(7), map[string]int{"users": 1}))
	require.True(t, c.Delete(ctx, ProfileKey(7)))
	require.True(t, c.Delete(ctx, ProfileKey(7)))

	_, ok := c.Get(ctx, ProfileKey(7))
	require.False(t, ok)
}

func TestCacheClearProfile(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.True(t, c.Set(ctx, ProfileKey(8), map[string]int{"users": 1}))
	require.True(t, c.ClearProfile(ctx, 8))

	_, ok := c.Get(ctx, ProfileKey(8))
	require.False(t, ok)
}

func TestCacheUnreachableBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(rdb, time.Minute)
	mr.Close()

	// Failures degrade to misses and false, never errors.
	_, ok := c.Get(context.Background(), ProfileKey(9))
	require.False(t, ok)
	require.False(t, c.Set(context.Background(), ProfileKey(9), nil))
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client), mr
}

type bar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	var got []bar
	hit, err := cache.GetJSON(ctx, "bars:600519:30", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	want := []bar{{Date: "2024-01-02", Close: 1685.01}}
	require.NoError(t, cache.SetJSON(ctx, "bars:600519:30", want, time.Minute))

	hit, err = cache.GetJSON(ctx, "bars:600519:30", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	hit, err = cache.GetJSON(ctx, "bars:600519:30", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheDeletePrefix(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"fused:600519:30", "fused:600519:60", "fused:000001:30"} {
		require.NoError(t, cache.SetJSON(ctx, key, 1, time.Minute))
	}

	n, err := cache.DeletePrefix(ctx, "fused:600519:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("fused:000001:30"))
	assert.False(t, mr.Exists("fused:600519:30"))
}

func TestCacheCorruptValue(t *testing.T) {
	cache, mr := newTestCache(t)
	require.NoError(t, mr.Set("bars:x", "{not json"))

	var got []bar
	_, err := cache.GetJSON(context.Background(), "bars:x", &got)
	assert.Error(t, err)
}

func TestRunLockerExclusivePerInstrument(t *testing.T) {
	ctx := context.Background()
	factory := NewMemoryLockFactory()
	a := NewRunLocker(factory)
	b := NewRunLocker(factory)

	ok, err := a.TryLock(ctx, "600519")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.TryLock(ctx, "600519")
	require.NoError(t, err)
	assert.False(t, ok, "same process cannot lock twice")

	ok, err = b.TryLock(ctx, "600519")
	require.NoError(t, err)
	assert.False(t, ok, "other process sees the lock")

	ok, err = b.TryLock(ctx, "000001")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, a.Unlock(ctx, "600519"))
	ok, err = b.TryLock(ctx, "600519")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, a.Unlock(ctx, "unknown"))
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := New(Config{
		Addr:       mr.Addr(),
		Namespace:  "imggen-test",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCacheSetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", []byte("payload"), time.Minute))

	got, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestCacheMissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheTTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	got, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "gone", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "gone"))

	got, err := c.Get(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheNamespacePrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("imggen-test:k"))

	// Keys already carrying the namespace are not double-prefixed.
	require.NoError(t, c.Set(ctx, "imggen-test:k2", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("imggen-test:k2"))
	assert.False(t, mr.Exists("imggen-test:imggen-test:k2"))
}

func TestCacheStats(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "miss")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

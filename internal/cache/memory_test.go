package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	m := NewMemory(DefaultMemoryConfig())
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("value"), time.Minute))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestMemoryMissReturnsNil(t *testing.T) {
	m := NewMemory(DefaultMemoryConfig())

	got, err := m.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryLazyExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(DefaultMemoryConfig())
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Second)
	got, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The expired entry was reclaimed on lookup.
	assert.Equal(t, 0, m.Len())
}

func TestMemoryDefaultTTLApplied(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(MemoryConfig{MaxEntries: 10, DefaultTTL: time.Minute})
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))

	now = now.Add(61 * time.Second)
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryEvictsOldestAtCapacity(t *testing.T) {
	m := NewMemory(MemoryConfig{MaxEntries: 3, DefaultTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte{byte(i)}, time.Minute))
	}
	require.Equal(t, 3, m.Len())

	require.NoError(t, m.Set(ctx, "k3", []byte{3}, time.Minute))
	assert.Equal(t, 3, m.Len())

	// Oldest insertion went first.
	got, err := m.Get(ctx, "k0")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)
}

func TestMemoryOverwriteRefreshesInsertionOrder(t *testing.T) {
	m := NewMemory(MemoryConfig{MaxEntries: 2, DefaultTTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, m.Set(ctx, "a", []byte("3"), time.Minute))

	// "b" is now the oldest and gets evicted first.
	require.NoError(t, m.Set(ctx, "c", []byte("4"), time.Minute))

	got, err := m.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory(DefaultMemoryConfig())
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	m := NewMemory(DefaultMemoryConfig())
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("abc"), time.Minute))

	got, _ := m.Get(ctx, "k")
	got[0] = 'z'

	again, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStats(t *testing.T) {
	m := NewMemory(DefaultMemoryConfig())
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	_, _ = m.Get(ctx, "k")
	_, _ = m.Get(ctx, "k")
	_, _ = m.Get(ctx, "miss")

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
}

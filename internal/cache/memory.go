// Package cache implements the in-memory result cache and the deterministic
// cache key generator used by the orchestrator.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	pkgcache "github.com/merlinrabens/image-gen-mcp/pkg/cache"
)

// Memory is an in-memory cache with lazy TTL expiry and oldest-first
// eviction under capacity pressure. No background sweeper: expired entries
// are treated as absent on lookup and reclaimed on insert.
type Memory struct {
	mu sync.Mutex

	entries map[string]*list.Element
	order   *list.List // front = oldest insertion

	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

type memoryEntry struct {
	key        string
	value      []byte
	expiration time.Time
}

// MemoryConfig holds configuration for Memory.
type MemoryConfig struct {
	MaxEntries int           // maximum number of entries (default: 100)
	DefaultTTL time.Duration // default TTL (default: 5 minutes)
}

// DefaultMemoryConfig returns sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxEntries: 100,
		DefaultTTL: 5 * time.Minute,
	}
}

// NewMemory creates a new in-memory cache.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	return &Memory{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: cfg.MaxEntries,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
}

// Get retrieves a value. Expired entries are removed and reported as misses.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	el, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		m.misses.Add(1)
		return nil, nil
	}
	entry := el.Value.(*memoryEntry)
	if !entry.expiration.After(m.now()) {
		m.order.Remove(el)
		delete(m.entries, key)
		m.mu.Unlock()
		m.misses.Add(1)
		return nil, nil
	}
	// Copy under lock so a concurrent eviction cannot race the read.
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	m.mu.Unlock()

	m.hits.Add(1)
	return value, nil
}

// Set stores a value, evicting the oldest entries once the capacity ceiling
// is exceeded.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.order.Remove(el)
		delete(m.entries, key)
	}

	for len(m.entries) >= m.maxEntries {
		oldest := m.order.Front()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}

	el := m.order.PushBack(&memoryEntry{
		key:        key,
		value:      valueCopy,
		expiration: m.now().Add(ttl),
	})
	m.entries[key] = el

	m.sets.Add(1)
	return nil
}

// Delete removes a key from the cache.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.order.Remove(el)
		delete(m.entries, key)
	}
	return nil
}

// Close implements cache.Cache. The memory cache holds no external resources.
func (m *Memory) Close() error {
	return nil
}

// Len returns the number of entries currently stored, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns cache statistics.
func (m *Memory) Stats() pkgcache.Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return pkgcache.Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    m.sets.Load(),
		HitRate: hitRate,
	}
}

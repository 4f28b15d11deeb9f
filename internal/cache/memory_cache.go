package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // нулевое значение — без истечения
}

// MemoryCache реализует CacheRepo в памяти процесса.
// Используется когда Redis не настроен, и в тестах.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]memoryEntry
	metrics hitCounter
	now     func() time.Time
}

// NewMemoryCache создаёт пустой кеш в памяти.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt)) {
		m.metrics.miss()
		return nil, ErrCacheMiss
	}

	m.metrics.hit()
	return append([]byte(nil), entry.value...), nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Close очищает кеш
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.items = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) GetMetrics() *CacheMetrics {
	return m.metrics.snapshot()
}

var (
	_ CacheRepo = (*MemoryCache)(nil)
	_ CacheRepo = (*RedisCache)(nil)
)

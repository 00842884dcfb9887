package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache over sync.Map. Readers of one key never
// block on writers of another.
//
// Expired entries are dropped lazily on Get; there is no janitor goroutine
// because feature content is stored without a TTL.
type MemoryCache struct {
	data sync.Map
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Get retrieves a value from the cache.
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	item := v.(memoryItem)
	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		m.data.CompareAndDelete(key, v)
		return nil, false, nil
	}
	return item.value, true, nil
}

// Set stores a value. The slice is copied so callers may reuse their buffer.
func (m *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item := memoryItem{value: append([]byte(nil), data...)}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}
	m.data.Store(key, item)
	return nil
}

// Delete removes a value from the cache.
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

// Clear removes every entry.
func (m *MemoryCache) Clear(ctx context.Context) error {
	m.data.Clear()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryCache) Len() int {
	n := 0
	m.data.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close does nothing for the memory cache.
func (m *MemoryCache) Close() error { return nil }

var _ Cache = (*MemoryCache)(nil)
var _ Clearer = (*MemoryCache)(nil)

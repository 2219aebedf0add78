package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryKV is an in-process KV used in tests and as a degraded fallback
// when Redis is unreachable. Per-key TTLs mirror the Redis behavior.
type MemoryKV struct {
	cache *cache.Cache
}

func NewMemoryKV() *MemoryKV {
	// Purge expired entries every 10 minutes; per-key TTLs are set on write.
	return &MemoryKV{cache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	if x, found := m.cache.Get(key); found {
		return x.([]byte), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	_, found := m.cache.Get(key)
	return found, nil
}

package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps entries in process memory. Expired entries are purged
// every cleanupInterval.
type MemoryBackend struct {
	store *gocache.Cache
}

// NewMemoryBackend creates an in-process backend.
func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryBackend{
		store: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := m.store.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := val.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

// SetEX implements Backend.
func (m *MemoryBackend) SetEX(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Del implements Backend.
func (m *MemoryBackend) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.store.Delete(k)
	}
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.store.Flush()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (m *MemoryBackend) Len() int {
	return m.store.ItemCount()
}

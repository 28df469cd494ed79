package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Store backed by go-cache. go-cache already treats
// expired entries as absent on read; the mutex exists only to make Take an
// atomic read-and-delete, which go-cache does not offer on its own.
type Memory struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// NewMemory creates a memory store. The janitor interval bounds how long
// expired entries linger physically; it does not affect visibility.
func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	m.c.Set(key, buf, ttl)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v.([]byte), nil
}

func (m *Memory) Take(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	m.c.Delete(key)
	return v.([]byte), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

// DeleteExpired evicts physically expired entries.
func (m *Memory) DeleteExpired() { m.c.DeleteExpired() }

package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local UsageStore used when Redis is not
// configured, and in tests. Counters are scoped by the same keyed windows
// as the Redis store, so daily/hourly rollover needs no background timer.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]memEntry
	blocks   map[string]time.Time

	now func() time.Time
}

type memEntry struct {
	count   int64
	expires time.Time
}

// NewMemoryStore returns an empty in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]memEntry),
		blocks:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Incr implements UsageStore.
func (m *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.counters[key]
	if !ok || m.now().After(e.expires) {
		e = memEntry{expires: m.now().Add(ttl)}
	}
	e.count++
	m.counters[key] = e
	return e.count, nil
}

// Count implements UsageStore.
func (m *MemoryStore) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.counters[key]
	if !ok || m.now().After(e.expires) {
		return 0, nil
	}
	return e.count, nil
}

// SetBlock implements UsageStore.
func (m *MemoryStore) SetBlock(_ context.Context, source string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[source] = m.now().Add(d)
	return nil
}

// Blocked implements UsageStore.
func (m *MemoryStore) Blocked(_ context.Context, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.blocks[source]
	if !ok {
		return false, nil
	}
	if m.now().After(until) {
		delete(m.blocks, source)
		return false, nil
	}
	return true, nil
}

package sequence

import (
	"context"
	"sync"
)

type counterKey struct {
	prefix string
	year   int
}

type memoryCounter struct {
	mu    sync.Mutex
	value int64
}

// MemoryStore is an in-process CounterStore keyed by (prefix, year). Used by
// tests and DB-less runs; acceptable where single-process deployment holds.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[counterKey]*memoryCounter
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[counterKey]*memoryCounter)}
}

// Increment bumps the counter for (prefix, year), creating it at zero on
// first use. The per-counter mutex mirrors the row lock of the Postgres
// store.
func (m *MemoryStore) Increment(ctx context.Context, prefix string, year int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	key := counterKey{prefix: prefix, year: year}
	counter, ok := m.counters[key]
	if !ok {
		counter = &memoryCounter{}
		m.counters[key] = counter
	}
	m.mu.Unlock()

	counter.mu.Lock()
	defer counter.mu.Unlock()
	counter.value++
	return counter.value, nil
}

// Seed sets the current value for a counter, creating it if needed.
func (m *MemoryStore) Seed(prefix string, year int, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[counterKey{prefix: prefix, year: year}] = &memoryCounter{value: value}
}

// Value reads the current counter value without incrementing.
func (m *MemoryStore) Value(prefix string, year int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.counters[counterKey{prefix: prefix, year: year}]
	if !ok {
		return 0
	}
	counter.mu.Lock()
	defer counter.mu.Unlock()
	return counter.value
}

package numbering

import (
	"context"
	"sync"
)

// MemoryCounter keeps counters in process memory. It backs tests and single-process tools.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[DocumentType]map[Bucket]int
}

// NewMemoryCounter returns an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[DocumentType]map[Bucket]int)}
}

// Increment implements Counter.
func (m *MemoryCounter) Increment(_ context.Context, t DocumentType, b Bucket) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buckets, ok := m.values[t]
	if !ok {
		buckets = make(map[Bucket]int)
		m.values[t] = buckets
	}
	buckets[b]++
	return buckets[b], nil
}

// Set forces the counter of a bucket, as a migration backfill would.
func (m *MemoryCounter) Set(t DocumentType, b Bucket, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[t] == nil {
		m.values[t] = make(map[Bucket]int)
	}
	m.values[t][b] = value
}

// Last implements the read side of RepositoryPort.
func (m *MemoryCounter) Last(_ context.Context, t DocumentType, b Bucket) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[t][b], nil
}

// WithTx implements RepositoryPort without rollback support.
func (m *MemoryCounter) WithTx(ctx context.Context, fn func(context.Context, Counter) error) error {
	return fn(ctx, m)
}

// Package exclusion holds the per-process notification id exclusion sets.
//
// These sets only bridge the gap between a local mutation and the next change
// feed event confirming it. The backing store's is_handled/is_dismissed
// columns are the source of truth; correctness must never depend on an
// exclusion set alone.
package exclusion

import (
	"context"
	"sync"
	"time"
)

// Store tracks notification ids excluded from the local queue. Implementations
// are best-effort caches, not systems of record.
type Store interface {
	// Has reports whether id is currently excluded.
	Has(ctx context.Context, id string) bool

	// Add marks id as excluded from now.
	Add(ctx context.Context, id string) error

	// Remove drops id from the set, if present.
	Remove(ctx context.Context, id string) error

	// Prune removes entries older than maxAge and returns how many were
	// dropped. Implementations with native expiry may return 0.
	Prune(ctx context.Context, maxAge time.Duration) int
}

// MemoryStore is an in-process Store. It backs unit tests and also serves as
// the fallback when Redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time

	// now is swappable so tests can drive pruning deterministically.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory exclusion set.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock. Test use only.
func (m *MemoryStore) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Has(_ context.Context, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok
}

func (m *MemoryStore) Add(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = m.now()
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) Prune(_ context.Context, maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	pruned := 0
	for id, addedAt := range m.entries {
		if addedAt.Before(cutoff) {
			delete(m.entries, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the current entry count.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

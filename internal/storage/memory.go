package storage

import (
	"context"
	"sync"

	"pricewatch/internal/quote"
)

// MemoryStore is an in-process history used for simulations and tests.
type MemoryStore struct {
	mu      sync.Mutex
	history []quote.Observation
}

// NewMemoryStore returns a store seeded with the given observations.
func NewMemoryStore(seed ...quote.Observation) *MemoryStore {
	history := make([]quote.Observation, len(seed))
	copy(history, seed)
	return &MemoryStore{history: history}
}

// Append adds obs to the end of the history.
func (m *MemoryStore) Append(ctx context.Context, obs quote.Observation) error {
	if err := ctx.Err(); err != nil {
		return persistErr("append", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, obs)
	return nil
}

// ReadAll returns a copy of the history.
func (m *MemoryStore) ReadAll(ctx context.Context) ([]quote.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistErr("read", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]quote.Observation, len(m.history))
	copy(out, m.history)
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

var _ HistoryStore = (*MemoryStore)(nil)

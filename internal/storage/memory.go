package storage

import (
	"context"
	"sync"

	"budget/internal/persistence"
)

// MemoryStore is a SnapshotStore that forgets everything on exit. It backs
// DATA_BACKEND=memory and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	rec *persistence.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (persistence.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec == nil {
		return persistence.Record{}, persistence.ErrNoSnapshot
	}
	out := *m.rec
	out.Data = out.Data.Clone()
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, rec persistence.Record) error {
	rec.Data = rec.Data.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec != nil && rec.Version < m.rec.Version {
		return nil
	}
	m.rec = &rec
	return nil
}

package refreshtoken

import (
	"context"
	"sync"
)

// Memory is an in-process Store backed by a mutex-protected map, suitable
// for tests and single-process deployments.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: map[string]Record{}}
}

func (m *Memory) Put(_ context.Context, hash string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[hash] = record
	return nil
}

func (m *Memory) Get(_ context.Context, hash string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, hash)
	return nil
}

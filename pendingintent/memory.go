package pendingintent

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   string
	expires time.Time
}

// Memory is an in-process Store backed by a mutex-protected map, suitable
// for tests and single-process deployments. A background goroutine (started
// by NewMemory) sweeps expired entries so Keys does not return stale codes.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory constructs a Memory store and starts its expiry sweeper, which
// runs until ctx is canceled.
func NewMemory(ctx context.Context) *Memory {
	m := &Memory{
		entries: map[string]entry{},
		now:     time.Now,
	}
	go m.sweep(ctx)
	return m
}

func (m *Memory) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for k, e := range m.entries {
				if now.After(e.expires) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Memory) PutIfAbsent(_ context.Context, code, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[code]; ok && m.now().Before(e.expires) {
		return ErrAlreadyUsed
	}
	m.entries[code] = entry{value: value, expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[code]
	if !ok || m.now().After(e.expires) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, code)
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if now.Before(e.expires) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

package identity

import (
	"context"
	"net/http"
	"sync"
)

// Mock is a trivial, in-memory Provider for tests and local development. A
// request authenticates as the user named by its "X-Debug-User" header, or
// fails if that header is absent and no DefaultUser is set.
type Mock struct {
	DefaultUser string

	mu        sync.Mutex
	profiles  map[string]Profile
	removals  map[string]QueuedRemoval
}

func NewMock() *Mock {
	return &Mock{
		profiles: map[string]Profile{},
		removals: map[string]QueuedRemoval{},
	}
}

func (m *Mock) AddProfile(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
}

func (m *Mock) QueueRemoval(r QueuedRemoval) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals[r.UserID] = r
}

func (m *Mock) AuthenticateSession(r *http.Request) (string, bool, error) {
	user := r.Header.Get("X-Debug-User")
	if user == "" {
		user = m.DefaultUser
	}
	if user == "" {
		return "", false, nil
	}
	return user, true, nil
}

func (m *Mock) Profile(_ context.Context, userID string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return Profile{}, ErrNotFound
}

func (m *Mock) QueuedRemovals(_ context.Context) ([]QueuedRemoval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueuedRemoval, 0, len(m.removals))
	for _, r := range m.removals {
		out = append(out, r)
	}
	return out, nil
}

func (m *Mock) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, userID)
	delete(m.removals, userID)
	return nil
}

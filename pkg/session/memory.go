package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Sessions are lost on restart and are not
// shared between replicas; use RedisStore for anything beyond a single node.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
	}
}

func (m *MemoryStore) Save(_ context.Context, key string, s Session) error {
	if err := checkKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s == (Session{}) {
		delete(m.sessions, key)
		return nil
	}
	m.sessions[key] = s
	return nil
}

func (m *MemoryStore) Read(_ context.Context, key string) (Session, error) {
	if err := checkKey(key); err != nil {
		return Session{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[key], nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) IsAuthenticated(ctx context.Context, key string) (bool, error) {
	s, err := m.Read(ctx, key)
	if err != nil {
		return false, err
	}
	return s.IsAuthenticated(), nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

var _ Store = (*MemoryStore)(nil)

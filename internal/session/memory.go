package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Entries older than ttl are treated as gone.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns a store; ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) expired(s Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok || m.expired(s) {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[s.ID]; ok && !m.expired(existing) {
		return ErrAlreadyExists
	}
	s.UpdatedAt = m.now()
	m.sessions[s.ID] = *clone(*s)
	return nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[s.ID]
	if !ok || m.expired(existing) {
		return ErrNotFound
	}
	s.UpdatedAt = m.now()
	m.sessions[s.ID] = *clone(*s)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if !m.expired(s) {
			n++
		}
	}
	return n
}

func clone(s Session) *Session {
	cp := s
	cp.Memory = append([]byte(nil), s.Memory...)
	return &cp
}

package cache

import (
	"context"
	"sync"

	"netpulse/internal/models"
)

// MemoryArchive is the process-local Archive used when no Redis address is
// configured. It keeps the most recent keep sessions.
type MemoryArchive struct {
	mu       sync.RWMutex
	keep     int
	order    []string
	sessions map[string]models.Session
}

func NewMemoryArchive(keep int) *MemoryArchive {
	if keep <= 0 {
		keep = 1
	}
	return &MemoryArchive{keep: keep, sessions: make(map[string]models.Session)}
}

func (m *MemoryArchive) StoreSession(_ context.Context, sess models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sess.ID]; ok {
		m.remove(sess.ID)
	}
	m.sessions[sess.ID] = sess
	m.order = append(m.order, sess.ID)

	for len(m.order) > m.keep {
		delete(m.sessions, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryArchive) remove(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *MemoryArchive) GetSession(_ context.Context, id string) (models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemoryArchive) RecentSessionIDs(_ context.Context, count int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0 && int64(len(out)) < count; i-- {
		out = append(out, m.order[i])
	}
	return out, nil
}

func (m *MemoryArchive) Close() error {
	return nil
}

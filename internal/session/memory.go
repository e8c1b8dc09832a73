// Package session implements the per-sender conversational state store.
// One logical session exists per sender; the pipeline serializes writers,
// the store enforces the inactivity expiry.
package session

import (
	"context"
	"sync"
	"time"

	"gastobot/internal/domain"
)

const defaultTimeout = 30 * time.Minute

// MemoryStore keeps sessions in-process. Expiry is checked on read, so an
// idle session is reset the next time its sender shows up; ClearIfExpired
// makes the expiry observable.
type MemoryStore struct {
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[string]domain.SessionState

	now func() time.Time
}

func NewMemoryStore(timeout time.Duration) *MemoryStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &MemoryStore{
		timeout:  timeout,
		sessions: make(map[string]domain.SessionState),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, senderID string) (domain.SessionState, error) {
	now := m.now()

	m.mu.RLock()
	state, ok := m.sessions[senderID]
	m.mu.RUnlock()

	if !ok || state.Expired(now, m.timeout) {
		return domain.NewSession(senderID, now), nil
	}
	return clone(state), nil
}

func (m *MemoryStore) Put(_ context.Context, state domain.SessionState) error {
	state.LastActivity = m.now()

	m.mu.Lock()
	m.sessions[state.SenderID] = clone(state)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ClearIfExpired(_ context.Context, senderID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[senderID]
	if !ok || !state.Expired(now, m.timeout) {
		return false, nil
	}
	delete(m.sessions, senderID)
	return true, nil
}

// clone copies the state so callers never share the stored PendingData map.
func clone(s domain.SessionState) domain.SessionState {
	out := s
	out.PendingData = make(map[string]string, len(s.PendingData))
	for k, v := range s.PendingData {
		out.PendingData[k] = v
	}
	return out
}

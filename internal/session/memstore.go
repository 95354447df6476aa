package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local revocation list used when no shared store
// is configured. Entries are purged lazily.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // zero means no expiry
	users   map[string]userCutoff
	now     func() time.Time
}

type userCutoff struct {
	at    time.Time
	until time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		users:   make(map[string]userCutoff),
		now:     time.Now,
	}
}

func (m *MemoryStore) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge()
	var until time.Time
	if ttl > 0 {
		until = m.now().Add(ttl)
	}
	m.entries[sessionID] = until
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.entries[sessionID]
	if !ok {
		return false, nil
	}
	if !until.IsZero() && !m.now().Before(until) {
		delete(m.entries, sessionID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) RevokeUser(_ context.Context, username string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge()
	cut := userCutoff{at: at}
	if ttl > 0 {
		cut.until = m.now().Add(ttl)
	}
	if prev, ok := m.users[username]; ok && prev.at.After(cut.at) {
		cut.at = prev.at
	}
	m.users[username] = cut
	return nil
}

func (m *MemoryStore) UserRevokedAt(_ context.Context, username string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cut, ok := m.users[username]
	if !ok {
		return time.Time{}, false, nil
	}
	if !cut.until.IsZero() && !m.now().Before(cut.until) {
		delete(m.users, username)
		return time.Time{}, false, nil
	}
	return cut.at, true, nil
}

func (m *MemoryStore) purge() {
	now := m.now()
	for id, until := range m.entries {
		if !until.IsZero() && !now.Before(until) {
			delete(m.entries, id)
		}
	}
	for name, cut := range m.users {
		if !cut.until.IsZero() && !now.Before(cut.until) {
			delete(m.users, name)
		}
	}
}

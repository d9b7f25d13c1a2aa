// Package presence tracks which sessions are currently connected, so that
// other processes (admin tooling, a web front page) can see who is online.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Session is one connected client.
type Session struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Store records connected sessions.
type Store interface {
	Add(ctx context.Context, s Session) error
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]Session, error)
	Close() error
}

// MemoryStore keeps sessions in process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Add(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.sessions)), nil
}

// List returns sessions ordered by connection time.
func (m *MemoryStore) List(_ context.Context) ([]Session, error) {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sortSessions(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortSessions(s []Session) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].ConnectedAt.Equal(s[j].ConnectedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].ConnectedAt.Before(s[j].ConnectedAt)
	})
}

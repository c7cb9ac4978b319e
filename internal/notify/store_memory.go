package notify

import (
	"context"
	"sync"
)

// MemoryStore untuk test dan jalan tanpa postgres.
type MemoryStore struct {
	mu        sync.Mutex
	byUser    map[string][]Notification
	endpoints map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser:    map[string][]Notification{},
		endpoints: map[string]string{},
	}
}

func (m *MemoryStore) SetPushEndpoint(userID, endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[userID] = endpoint
}

func (m *MemoryStore) Insert(ctx context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[n.UserID] = append(m.byUser[n.UserID], n)
	return nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.byUser[userID]
	if limit > 0 && len(ns) > limit {
		ns = ns[len(ns)-limit:]
	}
	return append([]Notification(nil), ns...), nil
}

func (m *MemoryStore) PushEndpoint(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoints[userID], nil
}

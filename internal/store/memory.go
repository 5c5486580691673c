package store

import (
	"context"
	"sync"
)

// MemoryStore is a development/test implementation kept for local runs
// without a storage URL.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[int64]*UserCredential
	logs  []ErrorEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[int64]*UserCredential)}
}

func (m *MemoryStore) Get(ctx context.Context, userID int64) (*UserCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) SetUID(ctx context.Context, userID, uid int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.creds[userID]
	if c == nil {
		c = &UserCredential{UserID: userID}
		m.creds[userID] = c
	}
	c.UID = uid
	return nil
}

func (m *MemoryStore) ReplaceSession(ctx context.Context, userID int64, s SessionFields) error {
	if !s.Complete() {
		return ErrIncompleteSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.creds[userID]
	if c == nil {
		c = &UserCredential{UserID: userID}
		m.creds[userID] = c
	}
	c.Session = s
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, cred *UserCredential) error {
	if cred == nil {
		return nil
	}
	if !cred.Session.Complete() {
		return ErrIncompleteSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cred
	m.creds[cred.UserID] = &cp
	return nil
}

func (m *MemoryStore) LogError(ctx context.Context, e ErrorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, e)
	return nil
}

// ErrorLogs returns a copy of recorded entries; test helper.
func (m *MemoryStore) ErrorLogs() []ErrorEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ErrorEntry(nil), m.logs...)
}

func (m *MemoryStore) Close() error { return nil }

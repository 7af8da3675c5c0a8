package accounts

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory account metadata store for tests and demo mode.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Metadata // tenantID|userID
}

// NewMemoryStore creates a new in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Metadata)}
}

func (m *MemoryStore) Get(_ context.Context, tenantID, userID string) (*Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.accounts[tenantID+"|"+userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *md
	return &cp, nil
}

// Put seeds account metadata. The identity service owns these rows in
// production; the setter exists for tests and demo mode.
func (m *MemoryStore) Put(_ context.Context, md *Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *md
	m.accounts[md.TenantID+"|"+md.UserID] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)

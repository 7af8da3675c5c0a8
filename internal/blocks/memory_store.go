package blocks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory block store for tests and demo mode.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks []*Block
}

// NewMemoryStore creates a new in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, b *Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.blocks = append(m.blocks, &cp)
	return nil
}

func (m *MemoryStore) ActiveForUser(_ context.Context, tenantID, userID string) ([]*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Block
	for _, b := range m.blocks {
		if b.TenantID == tenantID && b.UserID == userID && b.Active {
			cp := *b
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) ListForUser(_ context.Context, tenantID, userID string) ([]*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Block
	for _, b := range m.blocks {
		if b.TenantID == tenantID && b.UserID == userID {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) Revoke(_ context.Context, tenantID, blockID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.blocks {
		if b.TenantID == tenantID && b.ID == blockID {
			b.Active = false
			revoked := at
			b.RevokedAt = &revoked
			return nil
		}
	}
	return ErrBlockNotFound
}

var _ Store = (*MemoryStore)(nil)

package risk

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu       sync.RWMutex
	scalping map[string][]*ScalpingAssessment // tenantID|userID
	fraud    map[string][]*FraudAssessment    // tenantID|sellerID
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scalping: make(map[string][]*ScalpingAssessment),
		fraud:    make(map[string][]*FraudAssessment),
	}
}

func (s *MemoryStore) RecordScalping(_ context.Context, a *ScalpingAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	cp.Signals = append([]Signal(nil), a.Signals...)
	key := a.TenantID + "|" + a.UserID
	s.scalping[key] = append(s.scalping[key], &cp)
	return nil
}

func (s *MemoryStore) RecordFraud(_ context.Context, a *FraudAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	cp.Signals = append([]Signal(nil), a.Signals...)
	key := a.TenantID + "|" + a.SellerID
	s.fraud[key] = append(s.fraud[key], &cp)
	return nil
}

func (s *MemoryStore) ListScalpingForUser(_ context.Context, tenantID, userID string, limit int) ([]*ScalpingAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.scalping[tenantID+"|"+userID]
	if len(all) == 0 {
		return nil, nil
	}

	// Most recent first, up to limit
	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	result := make([]*ScalpingAssessment, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		cp := *all[i]
		cp.Signals = append([]Signal(nil), all[i].Signals...)
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryStore) ListFraudForSeller(_ context.Context, tenantID, sellerID string, limit int) ([]*FraudAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.fraud[tenantID+"|"+sellerID]
	if len(all) == 0 {
		return nil, nil
	}

	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	result := make([]*FraudAssessment, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		cp := *all[i]
		cp.Signals = append([]Signal(nil), all[i].Signals...)
		result = append(result, &cp)
	}
	return result, nil
}

var _ Store = (*MemoryStore)(nil)

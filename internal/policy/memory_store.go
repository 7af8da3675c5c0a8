package policy

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory policy store for tests and demo mode.
type MemoryStore struct {
	mu       sync.RWMutex
	byEvent  map[string]*EventPolicy // tenantID|eventID
	byVenue  map[string]*VenuePolicy // tenantID|venueID
	settings map[string]*LegacySettings
}

// NewMemoryStore creates a new in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byEvent:  make(map[string]*EventPolicy),
		byVenue:  make(map[string]*VenuePolicy),
		settings: make(map[string]*LegacySettings),
	}
}

func key(tenantID, scopeID string) string { return tenantID + "|" + scopeID }

func (m *MemoryStore) GetEventPolicy(_ context.Context, tenantID, eventID string) (*EventPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byEvent[key(tenantID, eventID)]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetVenuePolicy(_ context.Context, tenantID, venueID string) (*VenuePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byVenue[key(tenantID, venueID)]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetLegacySettings(_ context.Context, tenantID, venueID string) (*LegacySettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[key(tenantID, venueID)]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) PutEventPolicy(_ context.Context, p *EventPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byEvent[key(p.TenantID, p.EventID)] = &cp
	return nil
}

func (m *MemoryStore) PutVenuePolicy(_ context.Context, p *VenuePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byVenue[key(p.TenantID, p.VenueID)] = &cp
	return nil
}

// PutLegacySettings seeds a legacy venue-settings row. Legacy rows are
// written by the venue service, not this component; the setter exists
// for tests and demo mode.
func (m *MemoryStore) PutLegacySettings(_ context.Context, s *LegacySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settings[key(s.TenantID, s.VenueID)] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)

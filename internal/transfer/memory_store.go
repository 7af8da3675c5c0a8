package transfer

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory transfer store for tests and demo mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStore creates a new in-memory transfer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.TenantID == rec.TenantID && r.TicketID == rec.TicketID && r.TransferNumber == rec.TransferNumber {
			return ErrDuplicateTransferNumber
		}
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.records = append(m.records, &cp)
	return nil
}

func (m *MemoryStore) CountForTicket(_ context.Context, tenantID, ticketID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.records {
		if r.TenantID == tenantID && r.TicketID == ticketID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ListForTicket(_ context.Context, tenantID, ticketID string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Record
	for _, r := range m.records {
		if r.TenantID == tenantID && r.TicketID == ticketID {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TransferNumber < result[j].TransferNumber
	})
	return result, nil
}

func (m *MemoryStore) UserEventStats(_ context.Context, tenantID, userID, eventID string) (*UserEventStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &UserEventStats{}
	var markupSum float64
	var markupCount int

	for _, r := range m.records {
		if r.TenantID != tenantID || r.EventID != eventID {
			continue
		}
		if r.BuyerID == userID {
			stats.TicketsAcquired++
		}
		if r.SellerID == userID && r.Type == TypeResale {
			stats.ResaleCount++
			if r.FaceValue > 0 {
				markupSum += (r.Price - r.FaceValue) / r.FaceValue * 100
				markupCount++
			}
			if m.acquiredWithin(tenantID, userID, r.TicketID, r.CreatedAt, QuickFlipWindow) {
				stats.QuickFlips++
			}
		}
	}

	if markupCount > 0 {
		stats.AvgMarkupPct = markupSum / float64(markupCount)
	}
	return stats, nil
}

// acquiredWithin reports whether the user acquired the ticket inside
// the window before soldAt. Caller holds the read lock.
func (m *MemoryStore) acquiredWithin(tenantID, userID, ticketID string, soldAt time.Time, window time.Duration) bool {
	for _, r := range m.records {
		if r.TenantID == tenantID && r.TicketID == ticketID && r.BuyerID == userID &&
			!r.CreatedAt.After(soldAt) && soldAt.Sub(r.CreatedAt) <= window {
			return true
		}
	}
	return false
}

func (m *MemoryStore) SellerSalesSince(_ context.Context, tenantID, sellerID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.records {
		if r.TenantID == tenantID && r.SellerID == sellerID && r.Type == TypeResale && r.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

var _ Store = (*MemoryStore)(nil)

// Package blocks maintains the resale block registry. A block stops a
// user from listing or selling tickets for a tenant, either until an
// expiry time or permanently. Blocks are deactivated, never deleted, so
// the registry doubles as an enforcement audit trail.
package blocks

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrBlockNotFound = errors.New("blocks: block not found")
)

// Block is one enforcement action against a user.
type Block struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	UserID    string     `json:"userId"`
	Reason    string     `json:"reason"`
	BlockedBy string     `json:"blockedBy"` // admin user or automated system
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// Expired reports whether the block's expiry has passed. Permanent
// blocks (nil ExpiresAt) never expire.
func (b *Block) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// Status is the answer to a block-status lookup.
type Status struct {
	Blocked   bool       `json:"blocked"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Store persists blocks.
type Store interface {
	Create(ctx context.Context, b *Block) error
	// ActiveForUser returns the user's active blocks, expired or not.
	// Expiry is evaluated by the service, not the store.
	ActiveForUser(ctx context.Context, tenantID, userID string) ([]*Block, error)
	ListForUser(ctx context.Context, tenantID, userID string) ([]*Block, error)
	// Revoke deactivates a block in place. The row stays.
	Revoke(ctx context.Context, tenantID, blockID string, at time.Time) error
}

// Service answers block checks and records enforcement actions.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a block service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the time source, for expiry tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// BlockUser records a new block. A nil expiresAt means permanent.
func (s *Service) BlockUser(ctx context.Context, b *Block) error {
	b.Active = true
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	return s.store.Create(ctx, b)
}

// Unblock deactivates a block without removing it.
func (s *Service) Unblock(ctx context.Context, tenantID, blockID string) error {
	return s.store.Revoke(ctx, tenantID, blockID, s.now())
}

// CheckUser reports whether the user is currently blocked. A block
// counts only while active and unexpired; when several apply, the one
// expiring last wins, with permanent blocks ahead of all.
func (s *Service) CheckUser(ctx context.Context, tenantID, userID string) (*Status, error) {
	active, err := s.store.ActiveForUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var winner *Block
	for _, b := range active {
		if b.Expired(now) {
			continue
		}
		if winner == nil || outlasts(b, winner) {
			winner = b
		}
	}
	if winner == nil {
		return &Status{}, nil
	}
	return &Status{Blocked: true, Reason: winner.Reason, ExpiresAt: winner.ExpiresAt}, nil
}

// History returns every block ever placed on the user, active or not.
func (s *Service) History(ctx context.Context, tenantID, userID string) ([]*Block, error) {
	return s.store.ListForUser(ctx, tenantID, userID)
}

func outlasts(a, b *Block) bool {
	if a.ExpiresAt == nil {
		return true
	}
	if b.ExpiresAt == nil {
		return false
	}
	return a.ExpiresAt.After(*b.ExpiresAt)
}

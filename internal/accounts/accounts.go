// Package accounts reads account metadata owned by the identity
// subsystem: creation date, seller verification status, and device
// fingerprints. This component only reads it, for verification gating
// and fraud signals.
package accounts

import (
	"context"
	"errors"
	"time"
)

// ErrAccountNotFound is returned when no metadata row exists for a user.
var ErrAccountNotFound = errors.New("accounts: not found")

// Metadata is the per-user account state relevant to resale checks.
type Metadata struct {
	UserID            string    `json:"userId"`
	TenantID          string    `json:"tenantId"`
	CreatedAt         time.Time `json:"createdAt"`
	Verified          bool      `json:"verified"`
	DeviceFingerprint string    `json:"deviceFingerprint,omitempty"`
}

// Store provides read access to account metadata.
type Store interface {
	Get(ctx context.Context, tenantID, userID string) (*Metadata, error)
}

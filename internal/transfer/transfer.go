// Package transfer owns the append-only ticket transfer history and
// the resale transfer validator.
//
// Every completed transfer is one row, numbered per ticket starting at
// 1 with no gaps. The history doubles as the audit trail and as the
// input to transfer-limit checks and risk-scoring aggregates.
package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/smithciaran833/tickettoken-resale/internal/retry"
)

// Errors
var (
	ErrDuplicateTransferNumber = errors.New("transfer: transfer number already taken for ticket")
	ErrContention              = errors.New("transfer: could not assign transfer number after retries")
)

// Transfer types.
type Type string

const (
	TypeResale Type = "resale"
	TypeGift   Type = "gift"
	TypeOther  Type = "other"
)

// Record is one completed transfer. Append-only; never updated.
type Record struct {
	ID                 string    `json:"id"`
	TicketID           string    `json:"ticketId"`
	EventID            string    `json:"eventId"`
	VenueID            string    `json:"venueId"`
	TenantID           string    `json:"tenantId"`
	SellerID           string    `json:"sellerId"`
	BuyerID            string    `json:"buyerId"`
	Type               Type      `json:"type"`
	Price              float64   `json:"price"`
	FaceValue          float64   `json:"faceValue"`
	TransferNumber     int       `json:"transferNumber"` // 1-based, gapless per ticket
	JurisdictionCode   string    `json:"jurisdictionCode"`
	VerificationMethod string    `json:"verificationMethod,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// UserEventStats are the aggregates the scalping detector reads for
// one user and event. Missing history yields zero values, never errors.
type UserEventStats struct {
	TicketsAcquired int     `json:"ticketsAcquired"`
	ResaleCount     int     `json:"resaleCount"`
	AvgMarkupPct    float64 `json:"avgMarkupPct"`
	QuickFlips      int     `json:"quickFlips"`
}

// QuickFlipWindow is how soon after acquisition a resale counts as a
// quick flip.
const QuickFlipWindow = 24 * time.Hour

// Store persists transfer records and serves the aggregate reads.
type Store interface {
	// Append inserts a record with its TransferNumber already set.
	// Returns ErrDuplicateTransferNumber when another writer took the
	// same number for the ticket.
	Append(ctx context.Context, rec *Record) error

	CountForTicket(ctx context.Context, tenantID, ticketID string) (int, error)
	ListForTicket(ctx context.Context, tenantID, ticketID string) ([]*Record, error)

	// UserEventStats aggregates a user's transfer history for one event.
	UserEventStats(ctx context.Context, tenantID, userID, eventID string) (*UserEventStats, error)

	// SellerSalesSince counts a seller's resales across all events in a
	// trailing window, for velocity checks.
	SellerSalesSince(ctx context.Context, tenantID, sellerID string, since time.Time) (int, error)
}

const (
	maxAppendAttempts = 3
	appendRetryDelay  = 5 * time.Millisecond
)

// AppendNext assigns the next transfer number for the ticket and
// appends the record. Two concurrent resales of the same ticket can
// read the same count; the unique (ticket_id, transfer_number) index
// rejects the loser, which re-reads and retries, keeping the sequence
// gapless. Returns the assigned number.
func AppendNext(ctx context.Context, s Store, rec *Record) (int, error) {
	err := retry.Do(ctx, maxAppendAttempts, appendRetryDelay, func() error {
		count, err := s.CountForTicket(ctx, rec.TenantID, rec.TicketID)
		if err != nil {
			return retry.Permanent(err)
		}
		rec.TransferNumber = count + 1

		if err := s.Append(ctx, rec); err != nil {
			if err == ErrDuplicateTransferNumber {
				return err
			}
			return retry.Permanent(err)
		}
		return nil
	})
	if err == ErrDuplicateTransferNumber {
		return 0, ErrContention
	}
	if err != nil {
		return 0, err
	}
	return rec.TransferNumber, nil
}

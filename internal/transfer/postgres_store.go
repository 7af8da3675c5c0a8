package transfer

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists transfer records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transfer store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO ticket_transfers (
			id, ticket_id, event_id, venue_id, tenant_id,
			seller_id, buyer_id, transfer_type, price, face_value,
			transfer_number, jurisdiction_code, verification_method, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.TicketID, rec.EventID, rec.VenueID, rec.TenantID,
		rec.SellerID, rec.BuyerID, string(rec.Type), rec.Price, rec.FaceValue,
		rec.TransferNumber, rec.JurisdictionCode, rec.VerificationMethod, rec.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateTransferNumber
		}
		return err
	}
	return nil
}

func (p *PostgresStore) CountForTicket(ctx context.Context, tenantID, ticketID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ticket_transfers
		WHERE tenant_id = $1 AND ticket_id = $2`, tenantID, ticketID).Scan(&count)
	return count, err
}

func (p *PostgresStore) ListForTicket(ctx context.Context, tenantID, ticketID string) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, ticket_id, event_id, venue_id, tenant_id,
		       seller_id, buyer_id, transfer_type, price, face_value,
		       transfer_number, jurisdiction_code, COALESCE(verification_method, ''), created_at
		FROM ticket_transfers
		WHERE tenant_id = $1 AND ticket_id = $2
		ORDER BY transfer_number ASC`, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec := &Record{}
		var transferType string
		err := rows.Scan(&rec.ID, &rec.TicketID, &rec.EventID, &rec.VenueID, &rec.TenantID,
			&rec.SellerID, &rec.BuyerID, &transferType, &rec.Price, &rec.FaceValue,
			&rec.TransferNumber, &rec.JurisdictionCode, &rec.VerificationMethod, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		rec.Type = Type(transferType)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (p *PostgresStore) UserEventStats(ctx context.Context, tenantID, userID, eventID string) (*UserEventStats, error) {
	stats := &UserEventStats{}

	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ticket_transfers
		WHERE tenant_id = $1 AND event_id = $2 AND buyer_id = $3`,
		tenantID, eventID, userID).Scan(&stats.TicketsAcquired)
	if err != nil {
		return nil, err
	}

	var avgMarkup sql.NullFloat64
	err = p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       AVG((price - face_value) / face_value * 100) FILTER (WHERE face_value > 0)
		FROM ticket_transfers
		WHERE tenant_id = $1 AND event_id = $2 AND seller_id = $3 AND transfer_type = 'resale'`,
		tenantID, eventID, userID).Scan(&stats.ResaleCount, &avgMarkup)
	if err != nil {
		return nil, err
	}
	if avgMarkup.Valid {
		stats.AvgMarkupPct = avgMarkup.Float64
	}

	// A resale is a quick flip when the seller acquired the same ticket
	// within QuickFlipWindow before selling it.
	err = p.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM ticket_transfers sale
		WHERE sale.tenant_id = $1 AND sale.event_id = $2 AND sale.seller_id = $3
		  AND sale.transfer_type = 'resale'
		  AND EXISTS (
			SELECT 1 FROM ticket_transfers acq
			WHERE acq.tenant_id = sale.tenant_id
			  AND acq.ticket_id = sale.ticket_id
			  AND acq.buyer_id = sale.seller_id
			  AND acq.created_at <= sale.created_at
			  AND sale.created_at - acq.created_at <= make_interval(secs => $4)
		  )`,
		tenantID, eventID, userID, QuickFlipWindow.Seconds()).Scan(&stats.QuickFlips)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (p *PostgresStore) SellerSalesSince(ctx context.Context, tenantID, sellerID string, since time.Time) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ticket_transfers
		WHERE tenant_id = $1 AND seller_id = $2 AND transfer_type = 'resale' AND created_at > $3`,
		tenantID, sellerID, since).Scan(&count)
	return count, err
}

// Migrate creates the ticket_transfers table if it doesn't exist. The
// unique index on (tenant_id, ticket_id, transfer_number) is what keeps
// the per-ticket sequence gapless under concurrent writers.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ticket_transfers (
			id                  TEXT PRIMARY KEY,
			ticket_id           TEXT NOT NULL,
			event_id            TEXT NOT NULL,
			venue_id            TEXT NOT NULL,
			tenant_id           TEXT NOT NULL,
			seller_id           TEXT NOT NULL,
			buyer_id            TEXT NOT NULL,
			transfer_type       TEXT NOT NULL,
			price               DOUBLE PRECISION NOT NULL,
			face_value          DOUBLE PRECISION NOT NULL,
			transfer_number     INTEGER NOT NULL,
			jurisdiction_code   TEXT NOT NULL DEFAULT '',
			verification_method TEXT,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_transfers_ticket_number
			ON ticket_transfers(tenant_id, ticket_id, transfer_number);
		CREATE INDEX IF NOT EXISTS idx_transfers_seller_event
			ON ticket_transfers(tenant_id, event_id, seller_id);
		CREATE INDEX IF NOT EXISTS idx_transfers_buyer_event
			ON ticket_transfers(tenant_id, event_id, buyer_id);
		CREATE INDEX IF NOT EXISTS idx_transfers_seller_time
			ON ticket_transfers(tenant_id, seller_id, created_at);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)

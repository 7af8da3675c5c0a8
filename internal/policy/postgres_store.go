package policy

import (
	"context"
	"database/sql"
)

// PostgresStore persists resale policies in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed policy store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetEventPolicy(ctx context.Context, tenantID, eventID string) (*EventPolicy, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, venue_id, event_id, resale_allowed,
		       max_price_multiplier, max_price_fixed, max_transfers,
		       seller_verification_required, resale_cutoff_hours,
		       listing_cutoff_hours, anti_scalping_enabled, created_at, updated_at
		FROM event_resale_policies
		WHERE tenant_id = $1 AND event_id = $2`, tenantID, eventID)

	ep := &EventPolicy{}
	var mult, fixed, resaleCutoff, listingCutoff sql.NullFloat64
	var maxTransfers sql.NullInt64
	err := row.Scan(&ep.ID, &ep.TenantID, &ep.VenueID, &ep.EventID, &ep.ResaleAllowed,
		&mult, &fixed, &maxTransfers, &ep.SellerVerificationRequired,
		&resaleCutoff, &listingCutoff, &ep.AntiScalpingEnabled, &ep.CreatedAt, &ep.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	ep.MaxPriceMultiplier = nullFloat(mult)
	ep.MaxPriceFixed = nullFloat(fixed)
	ep.MaxTransfers = nullInt(maxTransfers)
	ep.ResaleCutoffHours = nullFloat(resaleCutoff)
	ep.ListingCutoffHours = nullFloat(listingCutoff)
	return ep, nil
}

func (p *PostgresStore) GetVenuePolicy(ctx context.Context, tenantID, venueID string) (*VenuePolicy, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, venue_id, resale_allowed,
		       max_price_multiplier, max_price_fixed, max_transfers,
		       seller_verification_required, resale_cutoff_hours,
		       listing_cutoff_hours, anti_scalping_enabled, created_at, updated_at
		FROM venue_resale_policies
		WHERE tenant_id = $1 AND venue_id = $2`, tenantID, venueID)

	vp := &VenuePolicy{}
	var mult, fixed, resaleCutoff, listingCutoff sql.NullFloat64
	var maxTransfers sql.NullInt64
	err := row.Scan(&vp.ID, &vp.TenantID, &vp.VenueID, &vp.ResaleAllowed,
		&mult, &fixed, &maxTransfers, &vp.SellerVerificationRequired,
		&resaleCutoff, &listingCutoff, &vp.AntiScalpingEnabled, &vp.CreatedAt, &vp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	vp.MaxPriceMultiplier = nullFloat(mult)
	vp.MaxPriceFixed = nullFloat(fixed)
	vp.MaxTransfers = nullInt(maxTransfers)
	vp.ResaleCutoffHours = nullFloat(resaleCutoff)
	vp.ListingCutoffHours = nullFloat(listingCutoff)
	return vp, nil
}

func (p *PostgresStore) GetLegacySettings(ctx context.Context, tenantID, venueID string) (*LegacySettings, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT tenant_id, venue_id, resale_enabled, resale_max_markup_pct,
		       max_transfers_per_ticket, require_verified_seller
		FROM venue_settings
		WHERE tenant_id = $1 AND venue_id = $2`, tenantID, venueID)

	ls := &LegacySettings{}
	var markup sql.NullFloat64
	var maxTransfers sql.NullInt64
	err := row.Scan(&ls.TenantID, &ls.VenueID, &ls.ResaleEnabled, &markup,
		&maxTransfers, &ls.RequireVerifiedSeller)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	ls.ResaleMaxMarkupPct = nullFloat(markup)
	ls.MaxTransfersPerTicket = nullInt(maxTransfers)
	return ls, nil
}

func (p *PostgresStore) PutEventPolicy(ctx context.Context, ep *EventPolicy) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO event_resale_policies (id, tenant_id, venue_id, event_id, resale_allowed,
			max_price_multiplier, max_price_fixed, max_transfers,
			seller_verification_required, resale_cutoff_hours,
			listing_cutoff_hours, anti_scalping_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (tenant_id, event_id) DO UPDATE SET
			resale_allowed = EXCLUDED.resale_allowed,
			max_price_multiplier = EXCLUDED.max_price_multiplier,
			max_price_fixed = EXCLUDED.max_price_fixed,
			max_transfers = EXCLUDED.max_transfers,
			seller_verification_required = EXCLUDED.seller_verification_required,
			resale_cutoff_hours = EXCLUDED.resale_cutoff_hours,
			listing_cutoff_hours = EXCLUDED.listing_cutoff_hours,
			anti_scalping_enabled = EXCLUDED.anti_scalping_enabled,
			updated_at = EXCLUDED.updated_at`,
		ep.ID, ep.TenantID, ep.VenueID, ep.EventID, ep.ResaleAllowed,
		floatPtr(ep.MaxPriceMultiplier), floatPtr(ep.MaxPriceFixed), intPtr(ep.MaxTransfers),
		ep.SellerVerificationRequired, floatPtr(ep.ResaleCutoffHours),
		floatPtr(ep.ListingCutoffHours), ep.AntiScalpingEnabled, ep.CreatedAt, ep.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) PutVenuePolicy(ctx context.Context, vp *VenuePolicy) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO venue_resale_policies (id, tenant_id, venue_id, resale_allowed,
			max_price_multiplier, max_price_fixed, max_transfers,
			seller_verification_required, resale_cutoff_hours,
			listing_cutoff_hours, anti_scalping_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, venue_id) DO UPDATE SET
			resale_allowed = EXCLUDED.resale_allowed,
			max_price_multiplier = EXCLUDED.max_price_multiplier,
			max_price_fixed = EXCLUDED.max_price_fixed,
			max_transfers = EXCLUDED.max_transfers,
			seller_verification_required = EXCLUDED.seller_verification_required,
			resale_cutoff_hours = EXCLUDED.resale_cutoff_hours,
			listing_cutoff_hours = EXCLUDED.listing_cutoff_hours,
			anti_scalping_enabled = EXCLUDED.anti_scalping_enabled,
			updated_at = EXCLUDED.updated_at`,
		vp.ID, vp.TenantID, vp.VenueID, vp.ResaleAllowed,
		floatPtr(vp.MaxPriceMultiplier), floatPtr(vp.MaxPriceFixed), intPtr(vp.MaxTransfers),
		vp.SellerVerificationRequired, floatPtr(vp.ResaleCutoffHours),
		floatPtr(vp.ListingCutoffHours), vp.AntiScalpingEnabled, vp.CreatedAt, vp.UpdatedAt,
	)
	return err
}

// Migrate creates the policy tables if they don't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS event_resale_policies (
			id                           TEXT PRIMARY KEY,
			tenant_id                    TEXT NOT NULL,
			venue_id                     TEXT NOT NULL,
			event_id                     TEXT NOT NULL,
			resale_allowed               BOOLEAN NOT NULL DEFAULT true,
			max_price_multiplier         DOUBLE PRECISION,
			max_price_fixed              DOUBLE PRECISION,
			max_transfers                INTEGER,
			seller_verification_required BOOLEAN NOT NULL DEFAULT false,
			resale_cutoff_hours          DOUBLE PRECISION,
			listing_cutoff_hours         DOUBLE PRECISION,
			anti_scalping_enabled        BOOLEAN NOT NULL DEFAULT false,
			created_at                   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at                   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_event_policies_tenant_event
			ON event_resale_policies(tenant_id, event_id);

		CREATE TABLE IF NOT EXISTS venue_resale_policies (
			id                           TEXT PRIMARY KEY,
			tenant_id                    TEXT NOT NULL,
			venue_id                     TEXT NOT NULL,
			resale_allowed               BOOLEAN NOT NULL DEFAULT true,
			max_price_multiplier         DOUBLE PRECISION,
			max_price_fixed              DOUBLE PRECISION,
			max_transfers                INTEGER,
			seller_verification_required BOOLEAN NOT NULL DEFAULT false,
			resale_cutoff_hours          DOUBLE PRECISION,
			listing_cutoff_hours         DOUBLE PRECISION,
			anti_scalping_enabled        BOOLEAN NOT NULL DEFAULT false,
			created_at                   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at                   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_venue_policies_tenant_venue
			ON venue_resale_policies(tenant_id, venue_id);

		CREATE TABLE IF NOT EXISTS venue_settings (
			tenant_id                TEXT NOT NULL,
			venue_id                 TEXT NOT NULL,
			resale_enabled           BOOLEAN NOT NULL DEFAULT true,
			resale_max_markup_pct    DOUBLE PRECISION,
			max_transfers_per_ticket INTEGER,
			require_verified_seller  BOOLEAN NOT NULL DEFAULT false,
			PRIMARY KEY (tenant_id, venue_id)
		);
	`)
	return err
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func intPtr(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

var _ Store = (*PostgresStore)(nil)

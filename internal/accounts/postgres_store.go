package accounts

import (
	"context"
	"database/sql"
)

// PostgresStore reads account metadata from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed account store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Get(ctx context.Context, tenantID, userID string) (*Metadata, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT user_id, tenant_id, created_at, verified, COALESCE(device_fingerprint, '')
		FROM account_metadata
		WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)

	md := &Metadata{}
	err := row.Scan(&md.UserID, &md.TenantID, &md.CreatedAt, &md.Verified, &md.DeviceFingerprint)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return md, nil
}

// Migrate creates the account_metadata table if it doesn't exist. The
// identity service owns this table; the DDL here keeps local and test
// environments self-contained.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS account_metadata (
			user_id            TEXT NOT NULL,
			tenant_id          TEXT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			verified           BOOLEAN NOT NULL DEFAULT false,
			device_fingerprint TEXT,
			PRIMARY KEY (tenant_id, user_id)
		);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)

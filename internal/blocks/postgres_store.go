package blocks

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists blocks in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed block store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, b *Block) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO resale_blocks (id, tenant_id, user_id, reason, blocked_by, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.TenantID, b.UserID, b.Reason, b.BlockedBy, nullTime(b.ExpiresAt), b.Active, b.CreatedAt)
	return err
}

func (p *PostgresStore) ActiveForUser(ctx context.Context, tenantID, userID string) ([]*Block, error) {
	return p.query(ctx, `
		SELECT id, tenant_id, user_id, reason, blocked_by, expires_at, active, created_at, revoked_at
		FROM resale_blocks
		WHERE tenant_id = $1 AND user_id = $2 AND active = true
		ORDER BY created_at DESC`, tenantID, userID)
}

func (p *PostgresStore) ListForUser(ctx context.Context, tenantID, userID string) ([]*Block, error) {
	return p.query(ctx, `
		SELECT id, tenant_id, user_id, reason, blocked_by, expires_at, active, created_at, revoked_at
		FROM resale_blocks
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at DESC`, tenantID, userID)
}

func (p *PostgresStore) Revoke(ctx context.Context, tenantID, blockID string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE resale_blocks SET active = false, revoked_at = $3
		WHERE tenant_id = $1 AND id = $2`, tenantID, blockID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (p *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*Block, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Block
	for rows.Next() {
		b := &Block{}
		var expires, revoked sql.NullTime
		err := rows.Scan(&b.ID, &b.TenantID, &b.UserID, &b.Reason, &b.BlockedBy,
			&expires, &b.Active, &b.CreatedAt, &revoked)
		if err != nil {
			return nil, err
		}
		if expires.Valid {
			t := expires.Time
			b.ExpiresAt = &t
		}
		if revoked.Valid {
			t := revoked.Time
			b.RevokedAt = &t
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// Migrate creates the resale_blocks table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS resale_blocks (
			id         TEXT PRIMARY KEY,
			tenant_id  TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			reason     TEXT NOT NULL,
			blocked_by TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ,
			active     BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			revoked_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_blocks_user
			ON resale_blocks(tenant_id, user_id) WHERE active = true;
	`)
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Store = (*PostgresStore)(nil)

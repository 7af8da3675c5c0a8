package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the assessment tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scalping_assessments (
			id              TEXT PRIMARY KEY,
			tenant_id       TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			event_id        TEXT NOT NULL,
			score           INTEGER NOT NULL,
			risk_level      VARCHAR(10) NOT NULL CHECK (risk_level IN ('low', 'medium', 'high', 'critical')),
			signals         JSONB NOT NULL DEFAULT '[]',
			requires_review BOOLEAN NOT NULL DEFAULT false,
			evaluated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_scalping_assessments_user
			ON scalping_assessments (tenant_id, user_id, evaluated_at DESC);

		CREATE TABLE IF NOT EXISTS fraud_assessments (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL,
			ticket_id    TEXT NOT NULL,
			seller_id    TEXT NOT NULL,
			buyer_id     TEXT NOT NULL,
			score        INTEGER NOT NULL,
			action       VARCHAR(10) NOT NULL CHECK (action IN ('allow', 'review', 'block')),
			signals      JSONB NOT NULL DEFAULT '[]',
			blocked      BOOLEAN NOT NULL DEFAULT false,
			evaluated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_fraud_assessments_seller
			ON fraud_assessments (tenant_id, seller_id, evaluated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_fraud_assessments_blocks
			ON fraud_assessments (evaluated_at DESC) WHERE blocked = true;
	`)
	return err
}

func (s *PostgresStore) RecordScalping(ctx context.Context, a *ScalpingAssessment) error {
	signalsJSON, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scalping_assessments (id, tenant_id, user_id, event_id, score, risk_level, signals, requires_review, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.TenantID, a.UserID, a.EventID, a.Score, string(a.Level), signalsJSON, a.RequiresReview, a.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("failed to record scalping assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordFraud(ctx context.Context, a *FraudAssessment) error {
	signalsJSON, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fraud_assessments (id, tenant_id, ticket_id, seller_id, buyer_id, score, action, signals, blocked, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.TenantID, a.TicketID, a.SellerID, a.BuyerID, a.Score, string(a.Action), signalsJSON, a.Blocked, a.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("failed to record fraud assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListScalpingForUser(ctx context.Context, tenantID, userID string, limit int) ([]*ScalpingAssessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, event_id, score, risk_level, signals, requires_review, evaluated_at
		FROM scalping_assessments
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY evaluated_at DESC
		LIMIT $3`, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scalping assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*ScalpingAssessment
	for rows.Next() {
		a := &ScalpingAssessment{}
		var level string
		var signalsJSON []byte
		err := rows.Scan(&a.ID, &a.TenantID, &a.UserID, &a.EventID, &a.Score, &level, &signalsJSON, &a.RequiresReview, &a.EvaluatedAt)
		if err != nil {
			return nil, err
		}
		a.Level = Level(level)
		if err := json.Unmarshal(signalsJSON, &a.Signals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signals: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *PostgresStore) ListFraudForSeller(ctx context.Context, tenantID, sellerID string, limit int) ([]*FraudAssessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, ticket_id, seller_id, buyer_id, score, action, signals, blocked, evaluated_at
		FROM fraud_assessments
		WHERE tenant_id = $1 AND seller_id = $2
		ORDER BY evaluated_at DESC
		LIMIT $3`, tenantID, sellerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*FraudAssessment
	for rows.Next() {
		a := &FraudAssessment{}
		var action string
		var signalsJSON []byte
		err := rows.Scan(&a.ID, &a.TenantID, &a.TicketID, &a.SellerID, &a.BuyerID, &a.Score, &action, &signalsJSON, &a.Blocked, &a.EvaluatedAt)
		if err != nil {
			return nil, err
		}
		a.Action = Action(action)
		if err := json.Unmarshal(signalsJSON, &a.Signals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signals: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

var _ Store = (*PostgresStore)(nil)

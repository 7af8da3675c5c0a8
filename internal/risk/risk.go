// Package risk implements heuristic scalping and fraud detection for
// ticket resales.
//
// Two independent scorers run against the transfer history and account
// metadata: a scalping detector that aggregates a user's buying and
// flipping behavior per event, and a fraud detector that checks a
// single proposed sale for device, pricing, account-age, and velocity
// signals. Both are advisory. They flag and recommend, they never
// mutate policy, and missing data always reads as "no signal".
package risk

import (
	"context"
	"time"
)

// Level buckets a cumulative scalping score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Action is the fraud detector's recommendation.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionReview Action = "review"
	ActionBlock  Action = "block"
)

// Severity grades an individual signal.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Default fraud decision thresholds.
const (
	DefaultBlockThreshold  = 75
	DefaultReviewThreshold = 40
)

// Scalping level boundaries on the cumulative score.
const (
	mediumScore   = 25
	highScore     = 50
	criticalScore = 90
)

// Signal is one triggered heuristic with its score contribution.
type Signal struct {
	Name     string   `json:"name"`
	Points   int      `json:"points"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// ScalpingAssessment is the result of scoring one user's behavior for
// one event.
type ScalpingAssessment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	EventID        string    `json:"eventId"`
	TenantID       string    `json:"tenantId"`
	Score          int       `json:"score"`
	Level          Level     `json:"riskLevel"`
	Signals        []Signal  `json:"signals"`
	RequiresReview bool      `json:"requiresReview"`
	EvaluatedAt    time.Time `json:"evaluatedAt"`
}

// FraudAssessment is the result of checking one proposed sale.
type FraudAssessment struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticketId"`
	SellerID    string    `json:"sellerId"`
	BuyerID     string    `json:"buyerId"`
	TenantID    string    `json:"tenantId"`
	Score       int       `json:"score"`
	Signals     []Signal  `json:"signals"`
	Action      Action    `json:"action"`
	Blocked     bool      `json:"blocked"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Store persists assessments for the audit trail.
type Store interface {
	RecordScalping(ctx context.Context, a *ScalpingAssessment) error
	RecordFraud(ctx context.Context, a *FraudAssessment) error
	ListScalpingForUser(ctx context.Context, tenantID, userID string, limit int) ([]*ScalpingAssessment, error)
	ListFraudForSeller(ctx context.Context, tenantID, sellerID string, limit int) ([]*FraudAssessment, error)
}

func levelFor(score int) Level {
	switch {
	case score >= criticalScore:
		return LevelCritical
	case score >= highScore:
		return LevelHigh
	case score >= mediumScore:
		return LevelMedium
	default:
		return LevelLow
	}
}

package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/smithciaran833/tickettoken-resale/internal/idgen"
	"github.com/smithciaran833/tickettoken-resale/internal/transfer"
)

// Signal thresholds for the scalping detector.
const (
	highVolumeTickets = 10 // tickets acquired for one event
	highResaleCount   = 5  // resales of that event's tickets
	elevatedMarkupPct = 50 // average markup across resales
	extremeMarkupPct  = 100
	quickFlipCount    = 3 // resales within QuickFlipWindow of acquisition
)

// scalpingRule is one named scoring heuristic over a user's per-event
// transfer aggregates. Rules are evaluated independently and summed.
type scalpingRule struct {
	name      string
	points    int
	severity  Severity
	triggered func(s *transfer.UserEventStats) (bool, string)
}

var scalpingRules = []scalpingRule{
	{
		name: "high_volume", points: 30, severity: SeverityMedium,
		triggered: func(s *transfer.UserEventStats) (bool, string) {
			if s.TicketsAcquired >= highVolumeTickets {
				return true, fmt.Sprintf("%d tickets acquired", s.TicketsAcquired)
			}
			return false, ""
		},
	},
	{
		name: "high_resale_count", points: 40, severity: SeverityHigh,
		triggered: func(s *transfer.UserEventStats) (bool, string) {
			if s.ResaleCount >= highResaleCount {
				return true, fmt.Sprintf("%d resales", s.ResaleCount)
			}
			return false, ""
		},
	},
	{
		name: "elevated_markup", points: 15, severity: SeverityLow,
		triggered: func(s *transfer.UserEventStats) (bool, string) {
			if s.AvgMarkupPct >= elevatedMarkupPct {
				return true, fmt.Sprintf("%.0f%% average markup", s.AvgMarkupPct)
			}
			return false, ""
		},
	},
	{
		name: "extreme_markup", points: 30, severity: SeverityHigh,
		triggered: func(s *transfer.UserEventStats) (bool, string) {
			if s.AvgMarkupPct >= extremeMarkupPct {
				return true, fmt.Sprintf("%.0f%% average markup", s.AvgMarkupPct)
			}
			return false, ""
		},
	},
	{
		name: "quick_flips", points: 20, severity: SeverityHigh,
		triggered: func(s *transfer.UserEventStats) (bool, string) {
			if s.QuickFlips >= quickFlipCount {
				return true, fmt.Sprintf("%d quick flips", s.QuickFlips)
			}
			return false, ""
		},
	},
}

// ScalpingDetector scores a user's buying and flipping behavior for a
// single event.
type ScalpingDetector struct {
	transfers transfer.Store
	store     Store
}

// NewScalpingDetector creates a scalping detector. The assessment
// store may be nil; assessments are then not persisted.
func NewScalpingDetector(transfers transfer.Store, store Store) *ScalpingDetector {
	return &ScalpingDetector{transfers: transfers, store: store}
}

// Detect aggregates the user's transfer history for the event and runs
// the named scalping rules over it. A user with no history scores zero.
func (d *ScalpingDetector) Detect(ctx context.Context, tenantID, userID, eventID string) (*ScalpingAssessment, error) {
	stats, err := d.transfers.UserEventStats(ctx, tenantID, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("load user event stats: %w", err)
	}

	assessment := &ScalpingAssessment{
		ID:          idgen.WithPrefix("scalp_"),
		UserID:      userID,
		EventID:     eventID,
		TenantID:    tenantID,
		Signals:     []Signal{},
		EvaluatedAt: time.Now(),
	}

	for _, rule := range scalpingRules {
		hit, detail := rule.triggered(stats)
		if !hit {
			continue
		}
		assessment.Score += rule.points
		assessment.Signals = append(assessment.Signals, Signal{
			Name:     rule.name,
			Points:   rule.points,
			Severity: rule.severity,
			Detail:   detail,
		})
	}

	assessment.Level = levelFor(assessment.Score)
	assessment.RequiresReview = assessment.Level == LevelCritical

	// Persist asynchronously (best-effort audit trail)
	if d.store != nil {
		go func() {
			_ = d.store.RecordScalping(context.Background(), assessment)
		}()
	}

	return assessment, nil
}

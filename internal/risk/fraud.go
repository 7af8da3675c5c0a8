package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/smithciaran833/tickettoken-resale/internal/accounts"
	"github.com/smithciaran833/tickettoken-resale/internal/idgen"
	"github.com/smithciaran833/tickettoken-resale/internal/transfer"
)

// Signal thresholds for the fraud detector.
const (
	suspiciousPriceRatio = 0.5 // price below this fraction of face value
	newAccountAge        = 24 * time.Hour
	velocityWindow       = time.Hour
	velocitySales        = 10
)

// FraudCheck is one proposed sale to screen. IP and the buyer device
// fingerprint are optional; absent inputs contribute no signal.
type FraudCheck struct {
	TicketID          string
	SellerID          string
	BuyerID           string
	TenantID          string
	Price             float64
	FaceValue         float64
	IP                string
	DeviceFingerprint string // buyer's, captured at request time
}

// fraudFacts is everything the rules look at, gathered up front so each
// rule stays a pure predicate.
type fraudFacts struct {
	check             FraudCheck
	seller            *accounts.Metadata // nil when unknown
	buyerFingerprint  string
	sellerSalesInHour int
	ipSuspicious      bool
	knownPattern      bool
	now               time.Time
}

// fraudRule is one named fraud heuristic. Rules are evaluated
// independently and summed.
type fraudRule struct {
	name      string
	points    int
	severity  Severity
	triggered func(f *fraudFacts) (bool, string)
}

var fraudRules = []fraudRule{
	{
		name: "same_device", points: 50, severity: SeverityHigh,
		triggered: func(f *fraudFacts) (bool, string) {
			if f.seller == nil || f.seller.DeviceFingerprint == "" || f.buyerFingerprint == "" {
				return false, ""
			}
			if f.seller.DeviceFingerprint == f.buyerFingerprint {
				return true, "buyer and seller share a device fingerprint"
			}
			return false, ""
		},
	},
	{
		name: "suspicious_pricing", points: 20, severity: SeverityMedium,
		triggered: func(f *fraudFacts) (bool, string) {
			if f.check.FaceValue > 0 && f.check.Price < f.check.FaceValue*suspiciousPriceRatio {
				return true, fmt.Sprintf("price %.2f far below face value %.2f", f.check.Price, f.check.FaceValue)
			}
			return false, ""
		},
	},
	{
		name: "new_account", points: 20, severity: SeverityMedium,
		triggered: func(f *fraudFacts) (bool, string) {
			if f.seller == nil || f.seller.CreatedAt.IsZero() {
				return false, ""
			}
			if age := f.now.Sub(f.seller.CreatedAt); age < newAccountAge {
				return true, fmt.Sprintf("seller account %s old", age.Round(time.Minute))
			}
			return false, ""
		},
	},
	{
		name: "velocity", points: 30, severity: SeverityHigh,
		triggered: func(f *fraudFacts) (bool, string) {
			if f.sellerSalesInHour >= velocitySales {
				return true, fmt.Sprintf("%d sales in the last hour", f.sellerSalesInHour)
			}
			return false, ""
		},
	},
	{
		name: "suspicious_ip", points: 15, severity: SeverityLow,
		triggered: func(f *fraudFacts) (bool, string) {
			if f.ipSuspicious {
				return true, "IP flagged by reputation lookup"
			}
			return false, ""
		},
	},
	{
		name: "known_fraud_pattern", points: 40, severity: SeverityHigh,
		triggered: func(f *fraudFacts) (bool, string) {
			if f.knownPattern {
				return true, "seller matches a known fraud pattern"
			}
			return false, ""
		},
	},
}

// IPReputation is an optional lookup for known-bad source addresses.
type IPReputation interface {
	Suspicious(ctx context.Context, ip string) (bool, error)
}

// PatternLookup is an optional lookup for sellers matching known fraud
// patterns (shared payment instruments, prior chargebacks, ...).
type PatternLookup interface {
	Match(ctx context.Context, tenantID, userID string) (bool, error)
}

// FraudDetector screens proposed sales for fraud signals.
type FraudDetector struct {
	transfers       transfer.Store
	accounts        accounts.Store
	store           Store
	ipReputation    IPReputation  // nil disables the IP rule
	patterns        PatternLookup // nil disables the pattern rule
	blockThreshold  int
	reviewThreshold int
	now             func() time.Time
}

// NewFraudDetector creates a fraud detector. The assessment store may
// be nil; assessments are then not persisted.
func NewFraudDetector(transfers transfer.Store, accountStore accounts.Store, store Store) *FraudDetector {
	return &FraudDetector{
		transfers:       transfers,
		accounts:        accountStore,
		store:           store,
		blockThreshold:  DefaultBlockThreshold,
		reviewThreshold: DefaultReviewThreshold,
		now:             time.Now,
	}
}

// WithIPReputation wires an IP reputation lookup into the rule set.
func (d *FraudDetector) WithIPReputation(r IPReputation) *FraudDetector {
	d.ipReputation = r
	return d
}

// WithPatternLookup wires a known-fraud-pattern lookup into the rule set.
func (d *FraudDetector) WithPatternLookup(p PatternLookup) *FraudDetector {
	d.patterns = p
	return d
}

// WithBlockThreshold overrides the default block threshold.
func (d *FraudDetector) WithBlockThreshold(t int) *FraudDetector {
	d.blockThreshold = t
	return d
}

// WithClock overrides the time source, for account-age tests.
func (d *FraudDetector) WithClock(now func() time.Time) *FraudDetector {
	d.now = now
	return d
}

// Detect gathers the facts for the sale and runs the named fraud rules
// over them. Unknown sellers and absent fingerprints are not errors;
// they simply contribute no signal.
func (d *FraudDetector) Detect(ctx context.Context, check FraudCheck) (*FraudAssessment, error) {
	facts, err := d.gather(ctx, check)
	if err != nil {
		return nil, err
	}

	assessment := &FraudAssessment{
		ID:          idgen.WithPrefix("fraud_"),
		TicketID:    check.TicketID,
		SellerID:    check.SellerID,
		BuyerID:     check.BuyerID,
		TenantID:    check.TenantID,
		Signals:     []Signal{},
		EvaluatedAt: time.Now(),
	}

	for _, rule := range fraudRules {
		hit, detail := rule.triggered(facts)
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

	switch {
	case assessment.Score >= d.blockThreshold:
		assessment.Action = ActionBlock
		assessment.Blocked = true
	case assessment.Score >= d.reviewThreshold:
		assessment.Action = ActionReview
	default:
		assessment.Action = ActionAllow
	}

	// Persist asynchronously (best-effort audit trail)
	if d.store != nil {
		go func() {
			_ = d.store.RecordFraud(context.Background(), assessment)
		}()
	}

	return assessment, nil
}

func (d *FraudDetector) gather(ctx context.Context, check FraudCheck) (*fraudFacts, error) {
	facts := &fraudFacts{
		check:            check,
		buyerFingerprint: check.DeviceFingerprint,
		now:              d.now(),
	}

	seller, err := d.accounts.Get(ctx, check.TenantID, check.SellerID)
	if err != nil && err != accounts.ErrAccountNotFound {
		return nil, fmt.Errorf("load seller account: %w", err)
	}
	facts.seller = seller

	// Fall back to the buyer's stored fingerprint when the request did
	// not carry one.
	if facts.buyerFingerprint == "" && check.BuyerID != "" {
		buyer, err := d.accounts.Get(ctx, check.TenantID, check.BuyerID)
		if err != nil && err != accounts.ErrAccountNotFound {
			return nil, fmt.Errorf("load buyer account: %w", err)
		}
		if buyer != nil {
			facts.buyerFingerprint = buyer.DeviceFingerprint
		}
	}

	sales, err := d.transfers.SellerSalesSince(ctx, check.TenantID, check.SellerID, facts.now.Add(-velocityWindow))
	if err != nil {
		return nil, fmt.Errorf("count recent sales: %w", err)
	}
	facts.sellerSalesInHour = sales

	if d.ipReputation != nil && check.IP != "" {
		suspicious, err := d.ipReputation.Suspicious(ctx, check.IP)
		if err == nil && suspicious {
			facts.ipSuspicious = true
		}
	}

	if d.patterns != nil && check.SellerID != "" {
		matched, err := d.patterns.Match(ctx, check.TenantID, check.SellerID)
		if err == nil && matched {
			facts.knownPattern = true
		}
	}

	return facts, nil
}

package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/smithciaran833/tickettoken-resale/internal/accounts"
	"github.com/smithciaran833/tickettoken-resale/internal/policy"
)

// Rejection reasons. Business outcomes, not errors.
const (
	ReasonResaleNotAllowed     = "resale not allowed for this event"
	ReasonTransferLimitReached = "transfer limit reached for this ticket"
	ReasonWindowClosed         = "resale window closed"
	ReasonVerificationRequired = "seller verification required"
	ReasonPriceExceedsCap      = "price exceeds maximum allowed"
)

// Request describes a proposed resale transfer.
type Request struct {
	TicketID         string
	EventID          string
	VenueID          string
	TenantID         string
	SellerID         string
	RequestedPrice   float64
	FaceValue        float64
	EventStartTime   time.Time
	JurisdictionCode string
}

// Result is the structured validation outcome. Policy violations set
// Allowed=false with a Reason; they are never returned as errors.
type Result struct {
	Allowed              bool                 `json:"allowed"`
	Reason               string               `json:"reason,omitempty"`
	MaxAllowedPrice      *float64             `json:"maxAllowedPrice,omitempty"`
	AppliedRule          string               `json:"appliedRule,omitempty"`
	RequiresVerification bool                 `json:"requiresVerification,omitempty"`
	TransferCount        int                  `json:"transferCount"`
	Policy               *policy.ResalePolicy `json:"policy,omitempty"`
}

// PolicyResolver resolves the effective resale policy for a transfer.
type PolicyResolver interface {
	Resolve(ctx context.Context, tenantID, venueID, eventID, jurisdictionCode string) (*policy.ResalePolicy, error)
}

// Validator runs the fixed-order resale checks against the effective
// policy. Read-only; recording an approved transfer is the caller's
// next step via AppendNext.
type Validator struct {
	policies  PolicyResolver
	transfers Store
	accounts  accounts.Store
	now       func() time.Time
}

// NewValidator creates a transfer validator.
func NewValidator(policies PolicyResolver, transfers Store, accountStore accounts.Store) *Validator {
	return &Validator{
		policies:  policies,
		transfers: transfers,
		accounts:  accountStore,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for cutoff tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate checks a proposed resale in fixed order, short-circuiting
// on the first failure: resale allowed, transfer limit, resale cutoff,
// seller verification, price cap. Data-access failures propagate as
// errors; everything else is a structured Result.
func (v *Validator) Validate(ctx context.Context, req Request) (*Result, error) {
	pol, err := v.policies.Resolve(ctx, req.TenantID, req.VenueID, req.EventID, req.JurisdictionCode)
	if err != nil {
		return nil, fmt.Errorf("resolve policy: %w", err)
	}

	res := &Result{Policy: pol}

	if !pol.ResaleAllowed {
		res.Reason = ReasonResaleNotAllowed
		return res, nil
	}

	count, err := v.transfers.CountForTicket(ctx, req.TenantID, req.TicketID)
	if err != nil {
		return nil, fmt.Errorf("count transfers: %w", err)
	}
	res.TransferCount = count
	if pol.MaxTransfers != nil && count >= *pol.MaxTransfers {
		res.Reason = ReasonTransferLimitReached
		return res, nil
	}

	if pol.ResaleCutoffHours != nil {
		hoursUntilEvent := req.EventStartTime.Sub(v.now()).Hours()
		if hoursUntilEvent < *pol.ResaleCutoffHours {
			res.Reason = ReasonWindowClosed
			return res, nil
		}
	}

	if pol.SellerVerificationRequired {
		md, err := v.accounts.Get(ctx, req.TenantID, req.SellerID)
		if err != nil && err != accounts.ErrAccountNotFound {
			return nil, fmt.Errorf("load seller account: %w", err)
		}
		if md == nil || !md.Verified {
			res.Reason = ReasonVerificationRequired
			res.RequiresVerification = true
			return res, nil
		}
	}

	bound, rule := pol.EffectiveCap(req.FaceValue)
	res.AppliedRule = rule
	if bound != nil && req.RequestedPrice > *bound {
		res.Reason = ReasonPriceExceedsCap
		res.MaxAllowedPrice = bound
		return res, nil
	}

	res.Allowed = true
	return res, nil
}

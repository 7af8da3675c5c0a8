// Package policy resolves the effective resale policy for a transfer.
//
// Policies come from three heterogeneous sources with strict
// precedence: an event-scoped row, a venue-scoped row, and the legacy
// venue-settings fields kept for older venues. Each source normalizes
// through one conversion function into the canonical ResalePolicy
// shape before any validation logic runs. The resolved policy is then
// tightened against the jurisdiction's legal price cap.
package policy

import (
	"errors"
	"time"

	"github.com/smithciaran833/tickettoken-resale/internal/jurisdiction"
)

// Errors
var (
	ErrPolicyNotFound = errors.New("policy: not found")
)

// Policy source names, reported on the resolved policy for auditing.
const (
	SourceEvent   = "event"
	SourceVenue   = "venue"
	SourceLegacy  = "legacy_settings"
	SourceDefault = "default"
)

// Applied-rule labels for price-cap reporting.
const (
	RuleMultiplier   = "multiplier"
	RuleFixed        = "fixed"
	RuleJurisdiction = "jurisdiction"
	RuleNone         = "none"
)

// ResalePolicy is the effective policy computed per request. It is
// derived fresh on every validation call and never persisted itself.
type ResalePolicy struct {
	ResaleAllowed              bool               `json:"resaleAllowed"`
	MaxPriceMultiplier         *float64           `json:"maxPriceMultiplier"`
	MaxPriceFixed              *float64           `json:"maxPriceFixed"`
	MaxTransfers               *int               `json:"maxTransfers"`
	SellerVerificationRequired bool               `json:"sellerVerificationRequired"`
	ResaleCutoffHours          *float64           `json:"resaleCutoffHours"`
	ListingCutoffHours         *float64           `json:"listingCutoffHours"`
	AntiScalpingEnabled        bool               `json:"antiScalpingEnabled"`
	JurisdictionRule           *jurisdiction.Rule `json:"jurisdictionRule,omitempty"`
	Source                     string             `json:"source"`
}

// EffectiveCap returns the price cap for a given face value and the
// label of the rule that bound: the minimum of the non-nil candidates
// (policy multiplier x face, fixed cap, jurisdiction multiplier x
// face). A nil cap means any price is valid. When the jurisdiction cap
// ties the policy cap the jurisdiction is cited, so rejections name
// the legal rule.
func (p *ResalePolicy) EffectiveCap(faceValue float64) (*float64, string) {
	var bound *float64
	rule := RuleNone

	consider := func(candidate float64, label string) {
		if bound == nil || candidate < *bound {
			c := candidate
			bound = &c
			rule = label
		}
	}

	if p.MaxPriceMultiplier != nil {
		consider(*p.MaxPriceMultiplier*faceValue, RuleMultiplier)
	}
	if p.MaxPriceFixed != nil {
		consider(*p.MaxPriceFixed, RuleFixed)
	}
	if p.JurisdictionRule != nil && p.JurisdictionRule.MaxMultiplier != nil {
		jcap := *p.JurisdictionRule.MaxMultiplier * faceValue
		if bound == nil || jcap <= *bound {
			bound = &jcap
			rule = RuleJurisdiction
		}
	}

	return bound, rule
}

// EventPolicy is a policy row scoped to a single event.
type EventPolicy struct {
	ID                         string    `json:"id"`
	TenantID                   string    `json:"tenantId"`
	VenueID                    string    `json:"venueId"`
	EventID                    string    `json:"eventId"`
	ResaleAllowed              bool      `json:"resaleAllowed"`
	MaxPriceMultiplier         *float64  `json:"maxPriceMultiplier"`
	MaxPriceFixed              *float64  `json:"maxPriceFixed"`
	MaxTransfers               *int      `json:"maxTransfers"`
	SellerVerificationRequired bool      `json:"sellerVerificationRequired"`
	ResaleCutoffHours          *float64  `json:"resaleCutoffHours"`
	ListingCutoffHours         *float64  `json:"listingCutoffHours"`
	AntiScalpingEnabled        bool      `json:"antiScalpingEnabled"`
	CreatedAt                  time.Time `json:"createdAt"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}

// VenuePolicy is a venue-wide default policy row (nil event scope).
type VenuePolicy struct {
	ID                         string    `json:"id"`
	TenantID                   string    `json:"tenantId"`
	VenueID                    string    `json:"venueId"`
	ResaleAllowed              bool      `json:"resaleAllowed"`
	MaxPriceMultiplier         *float64  `json:"maxPriceMultiplier"`
	MaxPriceFixed              *float64  `json:"maxPriceFixed"`
	MaxTransfers               *int      `json:"maxTransfers"`
	SellerVerificationRequired bool      `json:"sellerVerificationRequired"`
	ResaleCutoffHours          *float64  `json:"resaleCutoffHours"`
	ListingCutoffHours         *float64  `json:"listingCutoffHours"`
	AntiScalpingEnabled        bool      `json:"antiScalpingEnabled"`
	CreatedAt                  time.Time `json:"createdAt"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}

// LegacySettings are the resale fields on the old venue-settings row,
// kept for venues that predate per-venue policy rows.
type LegacySettings struct {
	TenantID              string   `json:"tenantId"`
	VenueID               string   `json:"venueId"`
	ResaleEnabled         bool     `json:"resaleEnabled"`
	ResaleMaxMarkupPct    *float64 `json:"resaleMaxMarkupPct"` // 50 = face value + 50%
	MaxTransfersPerTicket *int     `json:"maxTransfersPerTicket"`
	RequireVerifiedSeller bool     `json:"requireVerifiedSeller"`
}

// Source is the tagged union of the three policy origins.
type Source interface {
	normalize() ResalePolicy
}

func (e *EventPolicy) normalize() ResalePolicy {
	return ResalePolicy{
		ResaleAllowed:              e.ResaleAllowed,
		MaxPriceMultiplier:         e.MaxPriceMultiplier,
		MaxPriceFixed:              e.MaxPriceFixed,
		MaxTransfers:               e.MaxTransfers,
		SellerVerificationRequired: e.SellerVerificationRequired,
		ResaleCutoffHours:          e.ResaleCutoffHours,
		ListingCutoffHours:         e.ListingCutoffHours,
		AntiScalpingEnabled:        e.AntiScalpingEnabled,
		Source:                     SourceEvent,
	}
}

func (v *VenuePolicy) normalize() ResalePolicy {
	return ResalePolicy{
		ResaleAllowed:              v.ResaleAllowed,
		MaxPriceMultiplier:         v.MaxPriceMultiplier,
		MaxPriceFixed:              v.MaxPriceFixed,
		MaxTransfers:               v.MaxTransfers,
		SellerVerificationRequired: v.SellerVerificationRequired,
		ResaleCutoffHours:          v.ResaleCutoffHours,
		ListingCutoffHours:         v.ListingCutoffHours,
		AntiScalpingEnabled:        v.AntiScalpingEnabled,
		Source:                     SourceVenue,
	}
}

func (l *LegacySettings) normalize() ResalePolicy {
	p := ResalePolicy{
		ResaleAllowed:              l.ResaleEnabled,
		MaxTransfers:               l.MaxTransfersPerTicket,
		SellerVerificationRequired: l.RequireVerifiedSeller,
		Source:                     SourceLegacy,
	}
	if l.ResaleMaxMarkupPct != nil {
		// Legacy settings express the cap as markup percent over face.
		m := 1.0 + *l.ResaleMaxMarkupPct/100.0
		p.MaxPriceMultiplier = &m
	}
	return p
}

// Normalize converts any policy source into the canonical shape. A nil
// source yields the permissive default: resale allowed, all caps nil.
func Normalize(src Source) ResalePolicy {
	if src == nil {
		return ResalePolicy{ResaleAllowed: true, Source: SourceDefault}
	}
	return src.normalize()
}

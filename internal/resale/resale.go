// Package resale orchestrates the full resale flow: block check,
// policy validation, fraud screening, and transfer recording.
package resale

import (
	"time"

	"github.com/smithciaran833/tickettoken-resale/internal/jurisdiction"
	"github.com/smithciaran833/tickettoken-resale/internal/risk"
	"github.com/smithciaran833/tickettoken-resale/internal/transfer"
)

// Rejection reasons added by the orchestration layer, on top of the
// validator's own.
const (
	ReasonSellerBlocked = "seller is blocked from resale"
	ReasonFraudBlocked  = "sale blocked by fraud screening"
)

// Request is one proposed resale, as submitted by the caller. When no
// jurisdictionCode is given, one is derived from the venue location,
// falling back to the buyer location.
type Request struct {
	TicketID          string                 `json:"ticketId" binding:"required"`
	EventID           string                 `json:"eventId" binding:"required"`
	VenueID           string                 `json:"venueId"`
	SellerID          string                 `json:"sellerId" binding:"required"`
	BuyerID           string                 `json:"buyerId"`
	RequestedPrice    float64                `json:"requestedPrice"`
	FaceValue         float64                `json:"faceValue"`
	EventStartTime    time.Time              `json:"eventStartTime"`
	JurisdictionCode  string                 `json:"jurisdictionCode"`
	VenueLocation     *jurisdiction.Location `json:"venueLocation,omitempty"`
	BuyerLocation     *jurisdiction.Location `json:"buyerLocation,omitempty"`
	IP                string                 `json:"-"`
	DeviceFingerprint string                 `json:"deviceFingerprint,omitempty"`
}

// Receipt is the outcome of executing (or just validating) a resale.
type Receipt struct {
	Validation *transfer.Result      `json:"validation"`
	Record     *transfer.Record      `json:"record,omitempty"`
	Fraud      *risk.FraudAssessment `json:"fraud,omitempty"`
}

// Allowed reports whether the resale went (or would go) through.
func (r *Receipt) Allowed() bool {
	return r.Validation != nil && r.Validation.Allowed
}

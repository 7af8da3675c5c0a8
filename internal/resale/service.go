package resale

import (
	"context"
	"fmt"

	"github.com/smithciaran833/tickettoken-resale/internal/blocks"
	"github.com/smithciaran833/tickettoken-resale/internal/idgen"
	"github.com/smithciaran833/tickettoken-resale/internal/jurisdiction"
	"github.com/smithciaran833/tickettoken-resale/internal/logging"
	"github.com/smithciaran833/tickettoken-resale/internal/metrics"
	"github.com/smithciaran833/tickettoken-resale/internal/risk"
	"github.com/smithciaran833/tickettoken-resale/internal/traces"
	"github.com/smithciaran833/tickettoken-resale/internal/transfer"
)

// Service runs the resale flow end to end.
type Service struct {
	validator *transfer.Validator
	transfers transfer.Store
	blocks    *blocks.Service
	fraud     *risk.FraudDetector
	scalping  *risk.ScalpingDetector
}

// NewService creates a resale service.
func NewService(validator *transfer.Validator, transfers transfer.Store, blockSvc *blocks.Service, fraud *risk.FraudDetector, scalping *risk.ScalpingDetector) *Service {
	return &Service{
		validator: validator,
		transfers: transfers,
		blocks:    blockSvc,
		fraud:     fraud,
		scalping:  scalping,
	}
}

// Validate runs the block check and the policy validator without
// recording anything.
func (s *Service) Validate(ctx context.Context, tenantID string, req Request) (*Receipt, error) {
	ctx, span := traces.StartSpan(ctx, "resale.validate",
		traces.TenantID(tenantID), traces.TicketID(req.TicketID))
	defer span.End()

	receipt, err := s.check(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	metrics.ObserveValidation(receipt.Validation.Allowed, receipt.Validation.Reason)
	return receipt, nil
}

// Execute validates the resale, screens it for fraud, and on success
// records the transfer with the next gapless number for the ticket.
func (s *Service) Execute(ctx context.Context, tenantID string, req Request) (*Receipt, error) {
	ctx, span := traces.StartSpan(ctx, "resale.execute",
		traces.TenantID(tenantID), traces.TicketID(req.TicketID))
	defer span.End()

	receipt, err := s.check(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	if !receipt.Allowed() {
		metrics.ObserveValidation(receipt.Validation.Allowed, receipt.Validation.Reason)
		return receipt, nil
	}

	fraud, err := s.fraud.Detect(ctx, risk.FraudCheck{
		TicketID:          req.TicketID,
		SellerID:          req.SellerID,
		BuyerID:           req.BuyerID,
		TenantID:          tenantID,
		Price:             req.RequestedPrice,
		FaceValue:         req.FaceValue,
		IP:                req.IP,
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("fraud screening: %w", err)
	}
	receipt.Fraud = fraud
	metrics.ObserveFraud(string(fraud.Action))

	if fraud.Blocked {
		receipt.Validation.Allowed = false
		receipt.Validation.Reason = ReasonFraudBlocked
		metrics.ObserveValidation(receipt.Validation.Allowed, receipt.Validation.Reason)
		logging.L(ctx).Warn("resale blocked by fraud screening",
			"tenant_id", tenantID,
			"ticket_id", req.TicketID,
			"seller_id", req.SellerID,
			"score", fraud.Score,
		)
		return receipt, nil
	}

	rec := &transfer.Record{
		ID:               idgen.WithPrefix("trf_"),
		TicketID:         req.TicketID,
		EventID:          req.EventID,
		VenueID:          req.VenueID,
		TenantID:         tenantID,
		SellerID:         req.SellerID,
		BuyerID:          req.BuyerID,
		Type:             transfer.TypeResale,
		Price:            req.RequestedPrice,
		FaceValue:        req.FaceValue,
		JurisdictionCode: s.jurisdictionCode(req),
	}
	if _, err := transfer.AppendNext(ctx, s.transfers, rec); err != nil {
		return nil, fmt.Errorf("record transfer: %w", err)
	}
	receipt.Record = rec
	metrics.ObserveValidation(receipt.Validation.Allowed, receipt.Validation.Reason)
	metrics.TransfersRecordedTotal.Inc()

	logging.L(ctx).Info("resale recorded",
		"tenant_id", tenantID,
		"ticket_id", req.TicketID,
		"transfer_id", rec.ID,
		"transfer_number", rec.TransferNumber,
	)
	return receipt, nil
}

// History returns the ticket's full transfer trail.
func (s *Service) History(ctx context.Context, tenantID, ticketID string) ([]*transfer.Record, error) {
	return s.transfers.ListForTicket(ctx, tenantID, ticketID)
}

// ScalpingScore runs the scalping detector for a user and event.
func (s *Service) ScalpingScore(ctx context.Context, tenantID, userID, eventID string) (*risk.ScalpingAssessment, error) {
	ctx, span := traces.StartSpan(ctx, "resale.scalping_score",
		traces.TenantID(tenantID), traces.UserID(userID))
	defer span.End()

	a, err := s.scalping.Detect(ctx, tenantID, userID, eventID)
	if err != nil {
		return nil, err
	}
	metrics.ScalpingAssessmentsTotal.WithLabelValues(string(a.Level)).Inc()
	return a, nil
}

// FraudCheck runs the fraud detector for a proposed sale without
// touching the transfer history.
func (s *Service) FraudCheck(ctx context.Context, check risk.FraudCheck) (*risk.FraudAssessment, error) {
	ctx, span := traces.StartSpan(ctx, "resale.fraud_check",
		traces.TenantID(check.TenantID), traces.TicketID(check.TicketID))
	defer span.End()

	a, err := s.fraud.Detect(ctx, check)
	if err != nil {
		return nil, err
	}
	metrics.ObserveFraud(string(a.Action))
	return a, nil
}

// check runs the block lookup and the policy validator.
func (s *Service) check(ctx context.Context, tenantID string, req Request) (*Receipt, error) {
	status, err := s.blocks.CheckUser(ctx, tenantID, req.SellerID)
	if err != nil {
		return nil, fmt.Errorf("block check: %w", err)
	}
	if status.Blocked {
		return &Receipt{Validation: &transfer.Result{
			Allowed: false,
			Reason:  ReasonSellerBlocked,
		}}, nil
	}

	result, err := s.validator.Validate(ctx, transfer.Request{
		TicketID:         req.TicketID,
		EventID:          req.EventID,
		VenueID:          req.VenueID,
		TenantID:         tenantID,
		SellerID:         req.SellerID,
		RequestedPrice:   req.RequestedPrice,
		FaceValue:        req.FaceValue,
		EventStartTime:   req.EventStartTime,
		JurisdictionCode: s.jurisdictionCode(req),
	})
	if err != nil {
		return nil, err
	}
	return &Receipt{Validation: result}, nil
}

func (s *Service) jurisdictionCode(req Request) string {
	if req.JurisdictionCode != "" {
		return req.JurisdictionCode
	}
	return jurisdiction.Detect(req.VenueLocation, req.BuyerLocation)
}

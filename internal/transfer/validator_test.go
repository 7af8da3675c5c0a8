package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smithciaran833/tickettoken-resale/internal/accounts"
	"github.com/smithciaran833/tickettoken-resale/internal/jurisdiction"
	"github.com/smithciaran833/tickettoken-resale/internal/policy"
)

type stubResolver struct {
	pol *policy.ResalePolicy
}

func (s *stubResolver) Resolve(_ context.Context, _, _, _, _ string) (*policy.ResalePolicy, error) {
	return s.pol, nil
}

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func permissivePolicy() *policy.ResalePolicy {
	rule := jurisdiction.Lookup(jurisdiction.DefaultCode)
	return &policy.ResalePolicy{
		ResaleAllowed:    true,
		JurisdictionRule: &rule,
		Source:           policy.SourceDefault,
	}
}

func newTestValidator(pol *policy.ResalePolicy) (*Validator, *MemoryStore, *accounts.MemoryStore) {
	transfers := NewMemoryStore()
	accts := accounts.NewMemoryStore()
	v := NewValidator(&stubResolver{pol: pol}, transfers, accts)
	return v, transfers, accts
}

func TestValidateAllNullPolicyIsPermissive(t *testing.T) {
	v, _, _ := newTestValidator(permissivePolicy())

	res, err := v.Validate(context.Background(), Request{
		TicketID:       "tkt_1",
		TenantID:       "ten_1",
		SellerID:       "usr_s",
		RequestedPrice: 99999,
		FaceValue:      50,
		EventStartTime: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Reason)
	assert.Equal(t, policy.RuleNone, res.AppliedRule)
}

func TestValidateResaleNotAllowed(t *testing.T) {
	pol := permissivePolicy()
	pol.ResaleAllowed = false
	v, _, _ := newTestValidator(pol)

	res, err := v.Validate(context.Background(), Request{TicketID: "tkt_1", TenantID: "ten_1"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonResaleNotAllowed, res.Reason)
}

func TestValidateTransferLimitBoundary(t *testing.T) {
	pol := permissivePolicy()
	pol.MaxTransfers = i(2)
	v, transfers, _ := newTestValidator(pol)

	req := Request{
		TicketID:       "tkt_1",
		EventID:        "evt_1",
		TenantID:       "ten_1",
		SellerID:       "usr_s",
		RequestedPrice: 50,
		FaceValue:      50,
		EventStartTime: time.Now().Add(48 * time.Hour),
	}

	// One prior transfer: count 1 < limit 2, still allowed.
	_, err := AppendNext(context.Background(), transfers, &Record{
		ID: "trf_1", TicketID: "tkt_1", EventID: "evt_1", TenantID: "ten_1",
		SellerID: "usr_a", BuyerID: "usr_s", Type: TypeResale, Price: 50, FaceValue: 50,
	})
	require.NoError(t, err)

	res, err := v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.TransferCount)

	// Second transfer reaches the limit.
	_, err = AppendNext(context.Background(), transfers, &Record{
		ID: "trf_2", TicketID: "tkt_1", EventID: "evt_1", TenantID: "ten_1",
		SellerID: "usr_s", BuyerID: "usr_b", Type: TypeResale, Price: 50, FaceValue: 50,
	})
	require.NoError(t, err)

	res, err = v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonTransferLimitReached, res.Reason)
	assert.Equal(t, 2, res.TransferCount)
}

func TestValidateResaleCutoff(t *testing.T) {
	pol := permissivePolicy()
	pol.ResaleCutoffHours = f(24)
	v, _, _ := newTestValidator(pol)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v.WithClock(func() time.Time { return now })

	req := Request{
		TicketID:       "tkt_1",
		TenantID:       "ten_1",
		SellerID:       "usr_s",
		RequestedPrice: 50,
		FaceValue:      50,
	}

	req.EventStartTime = now.Add(48 * time.Hour)
	res, err := v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	req.EventStartTime = now.Add(12 * time.Hour)
	res, err = v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonWindowClosed, res.Reason)
}

func TestValidateSellerVerification(t *testing.T) {
	pol := permissivePolicy()
	pol.SellerVerificationRequired = true
	v, _, accts := newTestValidator(pol)

	req := Request{
		TicketID:       "tkt_1",
		TenantID:       "ten_1",
		SellerID:       "usr_s",
		RequestedPrice: 50,
		FaceValue:      50,
		EventStartTime: time.Now().Add(time.Hour),
	}

	// Unknown seller is treated as unverified, not an error.
	res, err := v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonVerificationRequired, res.Reason)
	assert.True(t, res.RequiresVerification)

	err = accts.Put(context.Background(), &accounts.Metadata{
		UserID: "usr_s", TenantID: "ten_1", Verified: true, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	res, err = v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestValidatePriceCapMultiplier(t *testing.T) {
	pol := permissivePolicy()
	pol.MaxPriceMultiplier = f(1.5)
	v, _, _ := newTestValidator(pol)

	req := Request{
		TicketID:       "tkt_1",
		TenantID:       "ten_1",
		SellerID:       "usr_s",
		FaceValue:      100,
		EventStartTime: time.Now().Add(time.Hour),
	}

	req.RequestedPrice = 150
	res, err := v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, policy.RuleMultiplier, res.AppliedRule)

	req.RequestedPrice = 150.01
	res, err = v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonPriceExceedsCap, res.Reason)
	require.NotNil(t, res.MaxAllowedPrice)
	assert.Equal(t, 150.0, *res.MaxAllowedPrice)
}

func TestValidateJurisdictionCapWins(t *testing.T) {
	// Connecticut caps resale at face value even when the event policy
	// allows 2x.
	rule := jurisdiction.Lookup("US-CT")
	pol := &policy.ResalePolicy{
		ResaleAllowed:      true,
		MaxPriceMultiplier: f(2.0),
		JurisdictionRule:   &rule,
		Source:             policy.SourceEvent,
	}
	v, _, _ := newTestValidator(pol)

	res, err := v.Validate(context.Background(), Request{
		TicketID:         "tkt_1",
		TenantID:         "ten_1",
		SellerID:         "usr_s",
		RequestedPrice:   150,
		FaceValue:        100,
		EventStartTime:   time.Now().Add(time.Hour),
		JurisdictionCode: "US-CT",
	})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonPriceExceedsCap, res.Reason)
	assert.Equal(t, policy.RuleJurisdiction, res.AppliedRule)
	require.NotNil(t, res.MaxAllowedPrice)
	assert.Equal(t, 100.0, *res.MaxAllowedPrice)
}

func TestValidateCheckOrderShortCircuits(t *testing.T) {
	// Resale disabled plus price over cap: the first failing check wins.
	pol := permissivePolicy()
	pol.ResaleAllowed = false
	pol.MaxPriceFixed = f(10)
	v, _, _ := newTestValidator(pol)

	res, err := v.Validate(context.Background(), Request{
		TicketID:       "tkt_1",
		TenantID:       "ten_1",
		RequestedPrice: 500,
		FaceValue:      100,
	})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonResaleNotAllowed, res.Reason)
}

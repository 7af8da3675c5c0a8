package policy

import "context"

// Store provides read/write access to the three policy sources.
// Lookups return ErrPolicyNotFound when no row exists for the scope.
type Store interface {
	GetEventPolicy(ctx context.Context, tenantID, eventID string) (*EventPolicy, error)
	GetVenuePolicy(ctx context.Context, tenantID, venueID string) (*VenuePolicy, error)
	GetLegacySettings(ctx context.Context, tenantID, venueID string) (*LegacySettings, error)

	PutEventPolicy(ctx context.Context, p *EventPolicy) error
	PutVenuePolicy(ctx context.Context, p *VenuePolicy) error
}

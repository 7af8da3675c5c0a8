package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smithciaran833/tickettoken-resale/internal/jurisdiction"
	"github.com/smithciaran833/tickettoken-resale/internal/metrics"
)

// DefaultCacheTTL is how long resolved source rows are cached before
// re-fetching. Callers that mutate policies must call Invalidate.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	policy    ResalePolicy
	fetchedAt time.Time
}

// Resolver merges the event-level override, the venue-level default,
// and the legacy venue-settings fields into one effective ResalePolicy,
// then tightens it against the jurisdiction rule.
type Resolver struct {
	store    Store
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

// NewResolver creates a policy resolver with the default cache TTL.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:    store,
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[string]*cacheEntry),
	}
}

// WithCacheTTL overrides the default cache TTL. A zero TTL disables caching.
func (r *Resolver) WithCacheTTL(ttl time.Duration) *Resolver {
	r.cacheTTL = ttl
	return r
}

// Invalidate drops cached resolutions for a tenant. Call after policy writes.
func (r *Resolver) Invalidate(tenantID string) {
	prefix := tenantID + "|"
	r.mu.Lock()
	for k := range r.cache {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(r.cache, k)
		}
	}
	r.mu.Unlock()
}

// Resolve produces the effective resale policy for a transfer.
//
// Resolution order: event-scoped row, else venue-scoped row, else the
// venue's legacy settings row, else a permissive default. After
// selecting a source, the jurisdiction rule's multiplier replaces the
// policy multiplier if it is numerically smaller; the rule is attached
// either way so price rejections can cite it. Purely read-only.
func (r *Resolver) Resolve(ctx context.Context, tenantID, venueID, eventID, jurisdictionCode string) (*ResalePolicy, error) {
	base, err := r.cachedSource(ctx, tenantID, venueID, eventID)
	if err != nil {
		return nil, err
	}

	rule := jurisdiction.Lookup(jurisdictionCode)
	base.JurisdictionRule = &rule
	if rule.MaxMultiplier != nil {
		if base.MaxPriceMultiplier == nil || *rule.MaxMultiplier < *base.MaxPriceMultiplier {
			m := *rule.MaxMultiplier
			base.MaxPriceMultiplier = &m
		}
	}

	return &base, nil
}

func (r *Resolver) cachedSource(ctx context.Context, tenantID, venueID, eventID string) (ResalePolicy, error) {
	key := tenantID + "|" + venueID + "|" + eventID

	if r.cacheTTL > 0 {
		r.mu.RLock()
		entry, ok := r.cache[key]
		if ok && time.Since(entry.fetchedAt) < r.cacheTTL {
			r.mu.RUnlock()
			metrics.PolicyCacheHits.WithLabelValues("hit").Inc()
			return entry.policy, nil
		}
		r.mu.RUnlock()
	}
	metrics.PolicyCacheHits.WithLabelValues("miss").Inc()

	p, err := r.selectSource(ctx, tenantID, venueID, eventID)
	if err != nil {
		return ResalePolicy{}, err
	}

	if r.cacheTTL > 0 {
		r.mu.Lock()
		r.cache[key] = &cacheEntry{policy: p, fetchedAt: time.Now()}
		r.mu.Unlock()
	}

	return p, nil
}

// selectSource walks the precedence chain. Up to three lookups; a
// missing row falls through, any other error propagates.
func (r *Resolver) selectSource(ctx context.Context, tenantID, venueID, eventID string) (ResalePolicy, error) {
	if eventID != "" {
		ep, err := r.store.GetEventPolicy(ctx, tenantID, eventID)
		switch {
		case err == nil:
			return Normalize(ep), nil
		case err != ErrPolicyNotFound:
			return ResalePolicy{}, fmt.Errorf("resolve event policy: %w", err)
		}
	}

	vp, err := r.store.GetVenuePolicy(ctx, tenantID, venueID)
	switch {
	case err == nil:
		return Normalize(vp), nil
	case err != ErrPolicyNotFound:
		return ResalePolicy{}, fmt.Errorf("resolve venue policy: %w", err)
	}

	ls, err := r.store.GetLegacySettings(ctx, tenantID, venueID)
	switch {
	case err == nil:
		return Normalize(ls), nil
	case err != ErrPolicyNotFound:
		return ResalePolicy{}, fmt.Errorf("resolve legacy settings: %w", err)
	}

	return Normalize(nil), nil
}

package policy

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smithciaran833/tickettoken-resale/internal/idgen"
	"github.com/smithciaran833/tickettoken-resale/internal/jurisdiction"
)

// Handler provides HTTP endpoints for policy management.
type Handler struct {
	store    Store
	resolver *Resolver
}

// NewHandler creates a new policy handler.
func NewHandler(store Store, resolver *Resolver) *Handler {
	return &Handler{store: store, resolver: resolver}
}

// RegisterRoutes sets up public policy routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/policies/effective", h.GetEffectivePolicy)
}

// RegisterAdminRoutes sets up admin-only policy routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.PUT("/policies/events/:id", h.PutEventPolicy)
	r.GET("/policies/events/:id", h.GetEventPolicy)
	r.PUT("/policies/venues/:id", h.PutVenuePolicy)
	r.GET("/policies/venues/:id", h.GetVenuePolicy)
}

func tenantID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Tenant-ID")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_tenant",
			"message": "X-Tenant-ID header is required",
		})
		return "", false
	}
	return id, true
}

// GetEffectivePolicy handles GET /v1/policies/effective?venueId=&eventId=&jurisdiction=
// It previews the policy a resale of this event would be validated
// against, including the jurisdiction tightening.
func (h *Handler) GetEffectivePolicy(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	code := c.Query("jurisdiction")
	if code == "" {
		code = jurisdiction.DefaultCode
	}

	pol, err := h.resolver.Resolve(c.Request.Context(), tenant, c.Query("venueId"), c.Query("eventId"), code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"policy": pol})
}

type policyRequest struct {
	VenueID                    string   `json:"venueId"`
	ResaleAllowed              bool     `json:"resaleAllowed"`
	MaxPriceMultiplier         *float64 `json:"maxPriceMultiplier"`
	MaxPriceFixed              *float64 `json:"maxPriceFixed"`
	MaxTransfers               *int     `json:"maxTransfers"`
	SellerVerificationRequired bool     `json:"sellerVerificationRequired"`
	ResaleCutoffHours          *float64 `json:"resaleCutoffHours"`
	ListingCutoffHours         *float64 `json:"listingCutoffHours"`
	AntiScalpingEnabled        bool     `json:"antiScalpingEnabled"`
}

// PutEventPolicy handles PUT /v1/admin/policies/events/:id
func (h *Handler) PutEventPolicy(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	now := time.Now()
	pol := &EventPolicy{
		ID:                         idgen.WithPrefix("pol_"),
		TenantID:                   tenant,
		VenueID:                    req.VenueID,
		EventID:                    c.Param("id"),
		ResaleAllowed:              req.ResaleAllowed,
		MaxPriceMultiplier:         req.MaxPriceMultiplier,
		MaxPriceFixed:              req.MaxPriceFixed,
		MaxTransfers:               req.MaxTransfers,
		SellerVerificationRequired: req.SellerVerificationRequired,
		ResaleCutoffHours:          req.ResaleCutoffHours,
		ListingCutoffHours:         req.ListingCutoffHours,
		AntiScalpingEnabled:        req.AntiScalpingEnabled,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := h.store.PutEventPolicy(c.Request.Context(), pol); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	h.resolver.Invalidate(tenant)

	c.JSON(http.StatusOK, gin.H{"policy": pol})
}

// GetEventPolicy handles GET /v1/admin/policies/events/:id
func (h *Handler) GetEventPolicy(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	pol, err := h.store.GetEventPolicy(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		if err == ErrPolicyNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No policy configured for this event",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"policy": pol})
}

// PutVenuePolicy handles PUT /v1/admin/policies/venues/:id
func (h *Handler) PutVenuePolicy(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	now := time.Now()
	pol := &VenuePolicy{
		ID:                         idgen.WithPrefix("pol_"),
		TenantID:                   tenant,
		VenueID:                    c.Param("id"),
		ResaleAllowed:              req.ResaleAllowed,
		MaxPriceMultiplier:         req.MaxPriceMultiplier,
		MaxPriceFixed:              req.MaxPriceFixed,
		MaxTransfers:               req.MaxTransfers,
		SellerVerificationRequired: req.SellerVerificationRequired,
		ResaleCutoffHours:          req.ResaleCutoffHours,
		ListingCutoffHours:         req.ListingCutoffHours,
		AntiScalpingEnabled:        req.AntiScalpingEnabled,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := h.store.PutVenuePolicy(c.Request.Context(), pol); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	h.resolver.Invalidate(tenant)

	c.JSON(http.StatusOK, gin.H{"policy": pol})
}

// GetVenuePolicy handles GET /v1/admin/policies/venues/:id
func (h *Handler) GetVenuePolicy(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	pol, err := h.store.GetVenuePolicy(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		if err == ErrPolicyNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No policy configured for this venue",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"policy": pol})
}

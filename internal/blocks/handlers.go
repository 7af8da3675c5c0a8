package blocks

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smithciaran833/tickettoken-resale/internal/idgen"
	"github.com/smithciaran833/tickettoken-resale/internal/logging"
	"github.com/smithciaran833/tickettoken-resale/internal/metrics"
)

// Handler provides HTTP endpoints for the block registry.
type Handler struct {
	service *Service
}

// NewHandler creates a new blocks handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public block-status routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users/:id/block-status", h.GetBlockStatus)
}

// RegisterAdminRoutes sets up admin-only block routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/blocks", h.CreateBlock)
	r.DELETE("/blocks/:id", h.RevokeBlock)
	r.GET("/users/:id/blocks", h.ListBlocks)
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

// GetBlockStatus handles GET /v1/users/:id/block-status
func (h *Handler) GetBlockStatus(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	status, err := h.service.CheckUser(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

type createBlockRequest struct {
	UserID    string     `json:"userId" binding:"required"`
	Reason    string     `json:"reason" binding:"required"`
	BlockedBy string     `json:"blockedBy"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// CreateBlock handles POST /v1/admin/blocks
func (h *Handler) CreateBlock(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req createBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	block := &Block{
		ID:        idgen.WithPrefix("blk_"),
		TenantID:  tenant,
		UserID:    req.UserID,
		Reason:    req.Reason,
		BlockedBy: req.BlockedBy,
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.service.BlockUser(c.Request.Context(), block); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	metrics.BlocksCreatedTotal.Inc()

	logging.L(c.Request.Context()).Info("user blocked from resale",
		"tenant_id", tenant,
		"user_id", req.UserID,
		"block_id", block.ID,
		"permanent", req.ExpiresAt == nil,
	)
	c.JSON(http.StatusCreated, gin.H{"block": block})
}

// RevokeBlock handles DELETE /v1/admin/blocks/:id
func (h *Handler) RevokeBlock(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	err := h.service.Unblock(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		if err == ErrBlockNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No block found with this id",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// ListBlocks handles GET /v1/admin/users/:id/blocks
func (h *Handler) ListBlocks(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	history, err := h.service.History(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blocks": history,
		"count":  len(history),
	})
}

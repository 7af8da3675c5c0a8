package resale

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smithciaran833/tickettoken-resale/internal/logging"
	"github.com/smithciaran833/tickettoken-resale/internal/pagination"
	"github.com/smithciaran833/tickettoken-resale/internal/risk"
	"github.com/smithciaran833/tickettoken-resale/internal/transfer"
)

// TenantHeader carries the caller's tenant on every request.
const TenantHeader = "X-Tenant-ID"

// Handler provides HTTP endpoints for resale operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new resale handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the resale routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/resales/validate", h.ValidateResale)
	r.POST("/resales", h.ExecuteResale)
	r.GET("/tickets/:id/transfers", h.ListTransfers)
	r.GET("/users/:id/scalping-score", h.GetScalpingScore)
	r.POST("/fraud-checks", h.RunFraudCheck)
}

// TenantID extracts the tenant from the request header.
func TenantID(c *gin.Context) (string, bool) {
	tenantID := c.GetHeader(TenantHeader)
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_tenant",
			"message": "X-Tenant-ID header is required",
		})
		return "", false
	}
	return tenantID, true
}

// ValidateResale handles POST /v1/resales/validate
func (h *Handler) ValidateResale(c *gin.Context) {
	tenantID, ok := TenantID(c)
	if !ok {
		return
	}

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	req.IP = c.ClientIP()

	receipt, err := h.service.Validate(c.Request.Context(), tenantID, req)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// ExecuteResale handles POST /v1/resales
func (h *Handler) ExecuteResale(c *gin.Context) {
	tenantID, ok := TenantID(c)
	if !ok {
		return
	}

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if req.BuyerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "buyerId is required to record a transfer",
		})
		return
	}
	req.IP = c.ClientIP()

	receipt, err := h.service.Execute(c.Request.Context(), tenantID, req)
	if err != nil {
		h.internalError(c, err)
		return
	}

	if !receipt.Allowed() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "resale_rejected",
			"reason":  receipt.Validation.Reason,
			"receipt": receipt,
		})
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

// ListTransfers handles GET /v1/tickets/:id/transfers
func (h *Handler) ListTransfers(c *gin.Context) {
	tenantID, ok := TenantID(c)
	if !ok {
		return
	}

	limit := pageLimit(c)
	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "cursor is not valid",
		})
		return
	}

	records, err := h.service.History(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		h.internalError(c, err)
		return
	}
	if cursor != nil {
		records = afterCursor(records, cursor)
	}

	page, next, more := pagination.ComputePage(records, limit, func(r *transfer.Record) (time.Time, string) {
		return r.CreatedAt, r.ID
	})

	c.JSON(http.StatusOK, gin.H{
		"transfers":   page,
		"count":       len(page),
		"next_cursor": next,
		"has_more":    more,
	})
}

func pageLimit(c *gin.Context) int {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}
	return limit
}

// afterCursor drops records at or before the cursor position. The
// cursor ID wins over the timestamp so same-instant records page
// correctly.
func afterCursor(records []*transfer.Record, cur *pagination.Cursor) []*transfer.Record {
	for i, r := range records {
		if r.ID == cur.ID {
			return records[i+1:]
		}
	}
	out := records[:0:0]
	for _, r := range records {
		if r.CreatedAt.After(cur.CreatedAt) {
			out = append(out, r)
		}
	}
	return out
}

// GetScalpingScore handles GET /v1/users/:id/scalping-score?eventId=...
func (h *Handler) GetScalpingScore(c *gin.Context) {
	tenantID, ok := TenantID(c)
	if !ok {
		return
	}

	eventID := c.Query("eventId")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "eventId query parameter is required",
		})
		return
	}

	assessment, err := h.service.ScalpingScore(c.Request.Context(), tenantID, c.Param("id"), eventID)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// fraudCheckRequest is the wire shape of a standalone fraud check.
type fraudCheckRequest struct {
	TicketID          string  `json:"ticketId" binding:"required"`
	SellerID          string  `json:"sellerId" binding:"required"`
	BuyerID           string  `json:"buyerId"`
	Price             float64 `json:"price"`
	FaceValue         float64 `json:"faceValue"`
	DeviceFingerprint string  `json:"deviceFingerprint,omitempty"`
}

// RunFraudCheck handles POST /v1/fraud-checks
func (h *Handler) RunFraudCheck(c *gin.Context) {
	tenantID, ok := TenantID(c)
	if !ok {
		return
	}

	var req fraudCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	check := risk.FraudCheck{
		TicketID:          req.TicketID,
		SellerID:          req.SellerID,
		BuyerID:           req.BuyerID,
		TenantID:          tenantID,
		Price:             req.Price,
		FaceValue:         req.FaceValue,
		IP:                c.ClientIP(),
		DeviceFingerprint: req.DeviceFingerprint,
	}

	assessment, err := h.service.FraudCheck(c.Request.Context(), check)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

func (h *Handler) internalError(c *gin.Context, err error) {
	logging.L(c.Request.Context()).Error("resale request failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": err.Error(),
	})
}

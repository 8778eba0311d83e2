package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/platform/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BillingHandler handles HTTP requests for quotes, billings and payments.
type BillingHandler struct {
	service *application.BillingService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(service *application.BillingService) *BillingHandler {
	return &BillingHandler{service: service}
}

// RegisterRoutes registers quote and billing routes.
func (h *BillingHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	admin := middleware.RequireRole(auth.RoleAdmin)
	resolver := middleware.RequireRole(auth.RoleAdmin, auth.RoleCustomer)

	quotes := r.Group("/quotes")
	quotes.Use(authMW)
	{
		// :id is the booking for generate and the quote for accept and reject.
		quotes.POST("/:id/generate", admin, h.GenerateQuote)
		quotes.PATCH("/:id/accept", resolver, h.AcceptQuote)
		quotes.PATCH("/:id/reject", resolver, h.RejectQuote)
	}

	billings := r.Group("/billings")
	billings.Use(authMW, resolver)
	{
		billings.GET("", h.ListBillings)
		billings.GET("/:id", h.GetBilling)
		billings.GET("/:id/invoice", h.Invoice)
		billings.POST("/:id/payment", admin, h.RecordPayment)
		billings.PATCH("/:id", admin, h.UpdateStatus)
	}
}

// GenerateQuote handles POST /quotes/:id/generate.
func (h *BillingHandler) GenerateQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var req application.GenerateQuoteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.GenerateQuote(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// AcceptQuote handles PATCH /quotes/:id/accept and returns the raised billing.
func (h *BillingHandler) AcceptQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	quoteID, ok := pathID(c, "id", "quote")
	if !ok {
		return
	}

	result, err := h.service.AcceptQuote(c.Request.Context(), actor, quoteID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RejectQuote handles PATCH /quotes/:id/reject.
func (h *BillingHandler) RejectQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	quoteID, ok := pathID(c, "id", "quote")
	if !ok {
		return
	}

	result, err := h.service.RejectQuote(c.Request.Context(), actor, quoteID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListBillings handles GET /billings.
func (h *BillingHandler) ListBillings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	items, total, err := h.service.ListBillings(c.Request.Context(), actor, c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// GetBilling handles GET /billings/:id.
func (h *BillingHandler) GetBilling(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	billingID, ok := pathID(c, "id", "billing")
	if !ok {
		return
	}

	result, err := h.service.GetBilling(c.Request.Context(), actor, billingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RecordPayment handles POST /billings/:id/payment.
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	billingID, ok := pathID(c, "id", "billing")
	if !ok {
		return
	}

	var req application.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.RecordPayment(c.Request.Context(), actor, billingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// UpdateStatus handles PATCH /billings/:id.
func (h *BillingHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	billingID, ok := pathID(c, "id", "billing")
	if !ok {
		return
	}

	var req application.UpdateBillingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.UpdateBillingStatus(c.Request.Context(), actor, billingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Invoice handles GET /billings/:id/invoice, streaming the xlsx file.
func (h *BillingHandler) Invoice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	billingID, ok := pathID(c, "id", "billing")
	if !ok {
		return
	}

	data, filename, err := h.service.Invoice(c.Request.Context(), actor, billingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Data(http.StatusOK, xlsxContentType, data)
}

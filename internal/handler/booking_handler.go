package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/platform/response"
)

// ReasonRequest carries an optional free-text reason for a rejection or cancellation.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// BookingHandler handles HTTP requests for bookings and their change requests.
type BookingHandler struct {
	service *application.BookingService
	billing *application.BillingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService, billing *application.BillingService) *BookingHandler {
	return &BookingHandler{service: service, billing: billing}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	admin := middleware.RequireRole(auth.RoleAdmin)
	customer := middleware.RequireRole(auth.RoleCustomer)

	bookings := r.Group("/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", customer, h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id", middleware.RequireRole(auth.RoleCustomer, auth.RoleAdmin), h.UpdateBooking)
		bookings.PATCH("/:id/assign", admin, h.AssignTechnicians)
		bookings.PATCH("/:id/confirm", admin, h.ConfirmBooking)
		bookings.PATCH("/:id/reject", admin, h.RejectBooking)
		bookings.PATCH("/:id/cancel", middleware.RequireRole(auth.RoleCustomer, auth.RoleAdmin), h.CancelBooking)
		bookings.GET("/:id/quote", h.GetQuote)

		bookings.POST("/:id/change-request", customer, h.RequestChange)
		bookings.GET("/:id/change-requests", h.ListChangeRequests)
		bookings.PATCH("/:id/change-request/approve", admin, h.ApproveChange)
		bookings.PATCH("/:id/change-request/reject", admin, h.RejectChange)
	}
}

// CreateBooking handles POST /bookings. One booking is created per selected service or pack.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreateBookings(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /bookings. Customers see their own, technicians their assignments.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	items, total, err := h.service.ListBookings(c.Request.Context(), actor, c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// GetBooking handles GET /bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateBooking handles PATCH /bookings/:id (notes and preferences only).
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var req application.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.UpdateBooking(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AssignTechnicians handles PATCH /bookings/:id/assign.
func (h *BookingHandler) AssignTechnicians(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var req application.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.AssignTechnicians(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ConfirmBooking handles PATCH /bookings/:id/confirm.
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	result, err := h.service.ConfirmBooking(c.Request.Context(), actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RejectBooking handles PATCH /bookings/:id/reject.
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.RejectBooking(c.Request.Context(), actor, bookingID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles PATCH /bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CancelBooking(c.Request.Context(), actor, bookingID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetQuote handles GET /bookings/:id/quote.
func (h *BookingHandler) GetQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	result, err := h.billing.GetQuoteByBooking(c.Request.Context(), actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RequestChange handles POST /bookings/:id/change-request.
func (h *BookingHandler) RequestChange(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var req application.ChangeRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.RequestChange(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListChangeRequests handles GET /bookings/:id/change-requests.
func (h *BookingHandler) ListChangeRequests(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	result, err := h.service.ListChangeRequests(c.Request.Context(), actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ApproveChange handles PATCH /bookings/:id/change-request/approve.
func (h *BookingHandler) ApproveChange(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var req application.ResolveChangeInput
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.ApproveChange(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RejectChange handles PATCH /bookings/:id/change-request/reject.
func (h *BookingHandler) RejectChange(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var req application.ResolveChangeInput
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.RejectChange(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

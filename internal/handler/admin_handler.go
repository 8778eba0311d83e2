package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/platform/response"
)

// AdminHandler handles account administration and workshop statistics.
type AdminHandler struct {
	users    *application.UserService
	bookings *application.BookingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users *application.UserService, bookings *application.BookingService) *AdminHandler {
	return &AdminHandler{users: users, bookings: bookings}
}

// RegisterRoutes registers admin routes. The technician list is open to every signed-in user
// so customers can pick a technician where the service allows it.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	r.GET("/technicians", authMW, h.ListTechnicians)

	admin := r.Group("/admin")
	admin.Use(authMW, middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateStaff)
		admin.PATCH("/users/:id/block", h.SetBlocked)
		admin.GET("/stats/bookings", h.BookingStats)
	}
}

// ListTechnicians handles GET /technicians.
func (h *AdminHandler) ListTechnicians(c *gin.Context) {
	result, err := h.users.ListTechnicians(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListUsers handles GET /admin/users?role=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	result, err := h.users.ListUsers(c.Request.Context(), c.DefaultQuery("role", string(auth.RoleCustomer)))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateStaff handles POST /admin/users.
func (h *AdminHandler) CreateStaff(c *gin.Context) {
	var req application.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.users.CreateStaff(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// SetBlocked handles PATCH /admin/users/:id/block.
func (h *AdminHandler) SetBlocked(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "id", "user")
	if !ok {
		return
	}

	var req application.SetBlockedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.users.SetBlocked(c.Request.Context(), actor, userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// BookingStats handles GET /admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

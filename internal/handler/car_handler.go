package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/platform/response"
)

// CarHandler handles a customer's cars.
type CarHandler struct {
	service *application.UserService
}

// NewCarHandler creates a new CarHandler.
func NewCarHandler(service *application.UserService) *CarHandler {
	return &CarHandler{service: service}
}

// RegisterRoutes registers car routes.
func (h *CarHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	cars := r.Group("/cars")
	cars.Use(authMW, middleware.RequireRole(auth.RoleCustomer))
	{
		cars.POST("", h.CreateCar)
		cars.GET("", h.ListCars)
	}
}

// CreateCar handles POST /cars.
func (h *CarHandler) CreateCar(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.CreateCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreateCar(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListCars handles GET /cars.
func (h *CarHandler) ListCars(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	result, err := h.service.ListCars(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

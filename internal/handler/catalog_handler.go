package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/platform/response"
)

// CatalogHandler handles HTTP requests for services, packs and the parts inventory.
type CatalogHandler struct {
	service *application.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(service *application.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// RegisterRoutes registers catalog routes. Browsing services and packs is public.
func (h *CatalogHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	admin := middleware.RequireRole(auth.RoleAdmin)
	staff := middleware.RequireRole(auth.RoleAdmin, auth.RoleTechnician)

	r.GET("/services", h.ListServices)
	r.GET("/packs", h.ListPacks)

	catalog := r.Group("")
	catalog.Use(authMW)
	{
		catalog.POST("/services", admin, h.CreateService)
		catalog.POST("/packs", admin, h.CreatePack)
		catalog.GET("/parts", staff, h.ListParts)
		catalog.POST("/parts", admin, h.CreatePart)
		catalog.POST("/parts/:id/restock", admin, h.RestockPart)
		catalog.GET("/parts/:id/logs", admin, h.ListInventoryLogs)
	}
}

// ListServices handles GET /services. ?all=true includes inactive services.
func (h *CatalogHandler) ListServices(c *gin.Context) {
	result, err := h.service.ListServices(c.Request.Context(), c.Query("all") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListPacks handles GET /packs. ?all=true includes inactive packs.
func (h *CatalogHandler) ListPacks(c *gin.Context) {
	result, err := h.service.ListPacks(c.Request.Context(), c.Query("all") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListParts handles GET /parts.
func (h *CatalogHandler) ListParts(c *gin.Context) {
	result, err := h.service.ListParts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CreateService handles POST /services.
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req application.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreateService(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CreatePack handles POST /packs.
func (h *CatalogHandler) CreatePack(c *gin.Context) {
	var req application.CreatePackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreatePack(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CreatePart handles POST /parts.
func (h *CatalogHandler) CreatePart(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.CreatePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreatePart(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// RestockPart handles POST /parts/:id/restock.
func (h *CatalogHandler) RestockPart(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	partID, ok := pathID(c, "id", "part")
	if !ok {
		return
	}

	var req application.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.RestockPart(c.Request.Context(), actor, partID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListInventoryLogs handles GET /parts/:id/logs.
func (h *CatalogHandler) ListInventoryLogs(c *gin.Context) {
	partID, ok := pathID(c, "id", "part")
	if !ok {
		return
	}

	result, err := h.service.ListInventoryLogs(c.Request.Context(), partID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/platform/response"
)

// JobHandler handles HTTP requests for the workshop job workflow.
type JobHandler struct {
	service *application.JobService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(service *application.JobService) *JobHandler {
	return &JobHandler{service: service}
}

// RegisterRoutes registers job routes.
func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	worker := middleware.RequireRole(auth.RoleTechnician, auth.RoleAdmin)

	jobs := r.Group("/jobs")
	jobs.Use(authMW)
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/:id", h.GetJob)
		jobs.PATCH("/:id/stage", worker, h.UpdateStage)
		jobs.POST("/:id/complete", worker, h.CompleteJob)
		jobs.POST("/:id/notes", h.AddNote)
	}
}

// ListJobs handles GET /jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	items, total, err := h.service.ListJobs(c.Request.Context(), actor, c.Query("stage"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// GetJob handles GET /jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "job")
	if !ok {
		return
	}

	result, err := h.service.GetJob(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateStage handles PATCH /jobs/:id/stage.
func (h *JobHandler) UpdateStage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "job")
	if !ok {
		return
	}

	var req application.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.UpdateStage(c.Request.Context(), actor, jobID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CompleteJob handles POST /jobs/:id/complete.
func (h *JobHandler) CompleteJob(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "job")
	if !ok {
		return
	}

	var req application.CompleteJobRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CompleteJob(c.Request.Context(), actor, jobID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AddNote handles POST /jobs/:id/notes.
func (h *JobHandler) AddNote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "job")
	if !ok {
		return
	}

	var req application.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.AddNote(c.Request.Context(), actor, jobID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

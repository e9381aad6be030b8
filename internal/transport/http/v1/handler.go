// Package v1 provides the public HTTP API of the courseforge service.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/courseforge/courseforge/internal/domain"
	"github.com/courseforge/courseforge/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Course API
	e.POST("/v1/courses", h.CreateCourse)
	e.GET("/v1/courses", h.ListCourses)
	e.GET("/v1/courses/:course_id", h.GetCourse)
	e.POST("/v1/courses/:course_id/documents", h.IngestDocuments)
	e.GET("/v1/courses/:course_id/documents", h.ListDocuments)

	// Stage API
	e.POST("/v1/courses/:course_id/stages/:stage/start", h.StartStage)
	e.POST("/v1/courses/:course_id/cancel", h.CancelStage)
	e.GET("/v1/courses/:course_id/status", h.GetStatus)
	e.GET("/v1/courses/:course_id/progress", h.GetProgress)
	e.GET("/v1/courses/:course_id/result", h.GetResult)
	e.GET("/v1/courses/:course_id/events", h.GetEvents)

	// Pathway API
	e.GET("/v1/courses/:course_id/pathways", h.ListPathways)
	e.GET("/v1/courses/:course_id/pathways/:pathway_id", h.GetPathway)
	e.POST("/v1/courses/:course_id/pathways/:pathway_id/reorder", h.ReorderModules)
	e.POST("/v1/courses/:course_id/pathways/:pathway_id/modules", h.AddModule)
	e.PUT("/v1/courses/:course_id/pathways/:pathway_id/modules/:module_index", h.UpdateModule)
	e.DELETE("/v1/courses/:course_id/pathways/:pathway_id/modules/:module_index", h.DeleteModule)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// respondError maps service errors onto HTTP status codes.
func respondError(c echo.Context, err error) error {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": validationErr.Error()})
	case errors.Is(err, domain.ErrInvalidOrder):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrStageActive):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrResultNotReady):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

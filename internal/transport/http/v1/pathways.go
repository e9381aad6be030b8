package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/courseforge/courseforge/internal/domain"
)

// ListPathways lists the pathways of a course.
// GET /v1/courses/:course_id/pathways
func (h *Handler) ListPathways(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	pathways, err := h.service.ListPathways(ctx, courseID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"course_id": courseID,
		"pathways":  pathways,
	})
}

// GetPathway gets a specific pathway by ID.
// GET /v1/courses/:course_id/pathways/:pathway_id
func (h *Handler) GetPathway(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")
	pathwayID := c.Param("pathway_id")

	pathway, err := h.service.GetPathway(ctx, courseID, pathwayID)
	if err != nil {
		return respondError(c, err)
	}
	if pathway == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "pathway not found"})
	}

	return c.JSON(http.StatusOK, pathway)
}

// ReorderModules permutes the modules of a pathway.
// POST /v1/courses/:course_id/pathways/:pathway_id/reorder
func (h *Handler) ReorderModules(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")
	pathwayID := c.Param("pathway_id")

	var req domain.ReorderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	pathway, err := h.service.ReorderModules(ctx, courseID, pathwayID, req.NewOrder)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, pathway)
}

// AddModule appends a module descriptor to a pathway.
// POST /v1/courses/:course_id/pathways/:pathway_id/modules
func (h *Handler) AddModule(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")
	pathwayID := c.Param("pathway_id")

	var req domain.ModuleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	pathway, err := h.service.AddModule(ctx, courseID, pathwayID, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, pathway)
}

// UpdateModule replaces one module descriptor of a pathway.
// PUT /v1/courses/:course_id/pathways/:pathway_id/modules/:module_index
func (h *Handler) UpdateModule(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")
	pathwayID := c.Param("pathway_id")

	index, err := strconv.Atoi(c.Param("module_index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "module_index must be an integer"})
	}

	var req domain.ModuleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	pathway, err := h.service.UpdateModule(ctx, courseID, pathwayID, index, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, pathway)
}

// DeleteModule removes one module descriptor from a pathway.
// DELETE /v1/courses/:course_id/pathways/:pathway_id/modules/:module_index
func (h *Handler) DeleteModule(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")
	pathwayID := c.Param("pathway_id")

	index, err := strconv.Atoi(c.Param("module_index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "module_index must be an integer"})
	}

	pathway, err := h.service.DeleteModule(ctx, courseID, pathwayID, index)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, pathway)
}

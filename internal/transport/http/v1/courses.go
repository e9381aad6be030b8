package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/courseforge/courseforge/internal/domain"
)

// CreateCourse creates a new course project.
// POST /v1/courses
func (h *Handler) CreateCourse(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.CreateCourseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	course, err := h.service.CreateCourse(ctx, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, course)
}

// ListCourses lists all courses.
// GET /v1/courses
func (h *Handler) ListCourses(c echo.Context) error {
	ctx := c.Request().Context()

	courses, err := h.service.ListCourses(ctx)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"courses": courses,
	})
}

// GetCourse gets a specific course by ID.
// GET /v1/courses/:course_id
func (h *Handler) GetCourse(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	course, err := h.service.GetCourse(ctx, courseID)
	if err != nil {
		return respondError(c, err)
	}
	if course == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "course not found"})
	}

	return c.JSON(http.StatusOK, course)
}

// IngestDocuments bulk-loads analyzed documents for a course.
// POST /v1/courses/:course_id/documents
func (h *Handler) IngestDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	var req domain.IngestDocumentsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	docs, err := h.service.IngestDocuments(ctx, courseID, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"course_id": courseID,
		"ingested":  len(docs),
	})
}

// ListDocuments lists the ingested documents of a course.
// GET /v1/courses/:course_id/documents
func (h *Handler) ListDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	docs, err := h.service.ListDocuments(ctx, courseID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"course_id": courseID,
		"documents": docs,
	})
}

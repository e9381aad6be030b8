package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/courseforge/courseforge/internal/domain"
)

// StartStage launches a stage run asynchronously. The response only
// acknowledges the start; poll progress or subscribe to the progress socket
// to follow the run.
// POST /v1/courses/:course_id/stages/:stage/start
func (h *Handler) StartStage(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")
	stage := domain.Stage(c.Param("stage"))

	var req domain.StartStageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.StartStage(ctx, courseID, stage, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusAccepted, resp)
}

// CancelStage asks the running stage of a course to stop between rounds.
// POST /v1/courses/:course_id/cancel
func (h *Handler) CancelStage(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	if err := h.service.CancelStage(ctx, courseID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"course_id": courseID,
		"cancelled": true,
	})
}

// GetStatus returns the coarse stage/status pair of a course.
// GET /v1/courses/:course_id/status
func (h *Handler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	status, err := h.service.GetStatus(ctx, courseID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, status)
}

// GetProgress returns the progress snapshot of the latest stage run.
// GET /v1/courses/:course_id/progress
func (h *Handler) GetProgress(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	snapshot, err := h.service.GetProgress(ctx, courseID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, snapshot)
}

// GetResult returns the artifacts of the latest stage run once it completed.
// GET /v1/courses/:course_id/result
func (h *Handler) GetResult(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	result, err := h.service.GetResult(ctx, courseID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// GetEvents returns the trace events of the latest stage run.
// GET /v1/courses/:course_id/events
func (h *Handler) GetEvents(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("course_id")

	var afterTs int64
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var limit int
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	runID, events, err := h.service.GetCourseEvents(ctx, courseID, afterTs, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"events": events,
	})
}

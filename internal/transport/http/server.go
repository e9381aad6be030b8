// Package http provides the HTTP server for the courseforge service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/courseforge/courseforge/internal/service"
	v1 "github.com/courseforge/courseforge/internal/transport/http/v1"
	"github.com/courseforge/courseforge/internal/transport/ws"
)

// NewServer creates and configures the HTTP server. It serves the public
// course API and the progress WebSocket.
func NewServer(svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	v1Handler.RegisterRoutes(e)

	e.GET("/v1/courses/:course_id/progress/ws", wsServer.HandleProgress)

	return e
}

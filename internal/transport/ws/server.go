package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/courseforge/courseforge/internal/domain"
	"github.com/courseforge/courseforge/internal/logging"
	"github.com/courseforge/courseforge/internal/service"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 50 * time.Second
	maxMessageSize = 4096
)

// ProgressMessage is the push envelope sent to subscribers.
type ProgressMessage struct {
	Type     string                        `json:"type"`
	Snapshot *domain.StageProgressSnapshot `json:"snapshot"`
}

// Server upgrades progress subscriptions and pumps hub messages out.
type Server struct {
	svc      *service.Service
	hub      *Hub
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc *service.Service, h *Hub, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		svc:    svc,
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleProgress upgrades the connection and streams progress snapshots for
// one course until the client goes away.
// GET /v1/courses/:course_id/progress/ws
func (s *Server) HandleProgress(c echo.Context) error {
	courseID := c.Param("course_id")
	ctx := c.Request().Context()

	course, err := s.svc.GetCourse(ctx, courseID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if course == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "course not found"})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "course_id", courseID, "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws, courseID)
	s.hub.Register(conn)

	ws.SetReadLimit(maxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	// Push the current snapshot so subscribers do not wait for the next
	// round to see state.
	if snap, err := s.svc.GetProgress(ctx, courseID); err == nil {
		if data, err := json.Marshal(ProgressMessage{Type: "progress", Snapshot: snap}); err == nil {
			select {
			case conn.Send <- data:
			default:
			}
		}
	} else if !errors.Is(err, service.ErrNotFound) {
		s.logger.Warn("failed to load initial progress", "course_id", courseID, "error", err)
	}

	return nil
}

// readPump services control frames and detects disconnects. Subscribers do
// not send anything meaningful.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "conn_id", conn.ID, "error", err)
			}
			return
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package ws pushes live stage progress to WebSocket subscribers.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/courseforge/courseforge/internal/logging"
)

// Connection represents a single WebSocket subscriber.
type Connection struct {
	ID       string
	CourseID string
	Conn     *websocket.Conn
	Send     chan []byte
	mu       sync.Mutex
}

// Hub manages progress subscribers grouped by course.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Courses maps course_id to the set of subscribed connection IDs
	courses map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *courseMessage

	logger *logging.Logger
	mu     sync.RWMutex
}

type courseMessage struct {
	courseID string
	data     []byte
}

// NewHub creates a new Hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		courses:     make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *courseMessage, 256),
		logger:      logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if conn.CourseID != "" {
				if h.courses[conn.CourseID] == nil {
					h.courses[conn.CourseID] = make(map[string]bool)
				}
				h.courses[conn.CourseID][conn.ID] = true
			}
			h.mu.Unlock()
			h.logger.Debug("ws connection registered", "conn_id", conn.ID, "course_id", conn.CourseID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if conn.CourseID != "" && h.courses[conn.CourseID] != nil {
					delete(h.courses[conn.CourseID], conn.ID)
					if len(h.courses[conn.CourseID]) == 0 {
						delete(h.courses, conn.CourseID)
					}
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			h.logger.Debug("ws connection unregistered", "conn_id", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if connIDs, ok := h.courses[msg.courseID]; ok {
				for connID := range connIDs {
					if conn, exists := h.connections[connID]; exists {
						select {
						case conn.Send <- msg.data:
						default:
							// Buffer full, drop the subscriber
							h.logger.Warn("ws connection buffer full, closing", "conn_id", connID)
							go h.Unregister(conn)
						}
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a connection bound to a course. The caller must
// register it before pumping.
func (h *Hub) NewConnection(ws *websocket.Conn, courseID string) *Connection {
	return &Connection{
		ID:       uuid.New().String(),
		CourseID: courseID,
		Conn:     ws,
		Send:     make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Broadcast sends a message to all subscribers of a course.
func (h *Hub) Broadcast(courseID string, data []byte) {
	h.broadcast <- &courseMessage{courseID: courseID, data: data}
}

// BroadcastJSON sends a JSON message to all subscribers of a course.
func (h *Hub) BroadcastJSON(courseID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(courseID, data)
	return nil
}

// SubscriberCount returns the number of connections subscribed to a course.
func (h *Hub) SubscriberCount(courseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.courses[courseID])
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DispatchEvent is broadcast to every connected console when the fleet
// state changes.
type DispatchEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Dispatch event names.
const (
	EventReportAssigned  = "report.assigned"
	EventReportCompleted = "report.completed"
	EventDroneCreated    = "drone.created"
)

// EventHub fans dispatch events out to websocket subscribers. Slow or dead
// clients are dropped rather than allowed to block a broadcast.
type EventHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

// NewEventHub creates an empty hub
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SubscribeHandler upgrades the connection and registers the client
func (h *EventHub) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("failed to upgrade websocket", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	zap.S().Debugw("dispatch event client connected", "remote", conn.RemoteAddr())

	// Drain (and discard) client messages so pings and closes are handled.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Publish sends an event to all connected clients
func (h *EventHub) Publish(event string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(DispatchEvent{Event: event, Payload: payload}); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *EventHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
		zap.S().Debugw("dispatch event client disconnected", "remote", conn.RemoteAddr())
	}
}

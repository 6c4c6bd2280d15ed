package downstream

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tracker_gateway/internal/model"
	"tracker_gateway/pkg/colors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHub implements Pipeline by broadcasting every published
// Position, JSON-encoded, to all currently-subscribed WebSocket clients.
// Adapted from the teacher's internal/http/websocket.go hub: same
// register/unregister/broadcast channel trio, generalized from GPSData
// rows to Positions.
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWebSocketHub creates an unstarted hub; call Run in its own goroutine.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run drives the hub's event loop; it never returns.
func (h *WebSocketHub) Run() {
	colors.PrintServer("🔗", "WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			colors.PrintConnection("📱", "WebSocket client connected, total=%d", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()
			colors.PrintConnection("📱", "WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish implements Pipeline: it never blocks the caller on a slow or
// absent client, matching §6's "deliver asynchronously".
func (h *WebSocketHub) Publish(pos *model.Position) {
	data, err := json.Marshal(pos)
	if err != nil {
		colors.PrintError("websocket: failed to encode position: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		colors.PrintWarning("websocket: broadcast channel full, dropping update")
	}
}

// Handle upgrades an HTTP request to a WebSocket subscriber connection.
func (h *WebSocketHub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		colors.PrintError("websocket: upgrade failed: %v", err)
		return
	}
	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

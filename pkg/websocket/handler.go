package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades incoming requests to WebSocket connections and
// registers them with a Hub. There is no per-connection authentication:
// this subsystem has no auth surface.
type Handler struct {
	hub *Hub
}

// NewHandler creates a new WebSocket handler bound to hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeHTTP handles a WebSocket upgrade request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/models"
)

const writeWait = 10 * time.Second

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]struct{}

	// Messages to be broadcast to all connected clients
	broadcast chan models.Message

	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
}

// NewHub creates a new hub for managing WebSocket connections
func NewHub(logger logrus.FieldLogger) *Hub {
	upgrader := websocket.Upgrader{
		// Allow all origins for WebSocket connections
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		broadcast:   make(chan models.Message, 16),
		upgrader:    upgrader,
		logger:      logger.WithField("component", "websocket"),
	}
}

// Run delivers queued messages until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case msg := <-h.broadcast:
			h.send(msg)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) send(msg models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.connections {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(msg); err != nil {
			h.logger.WithError(err).Warn("dropping websocket client")
			client.Close()
			delete(h.connections, client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.connections {
		client.Close()
		delete(h.connections, client)
	}
}

// HandleWebSocket upgrades an HTTP connection to WebSocket
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.connections[ws] = struct{}{}
	h.mu.Unlock()

	// Read until the client goes away; inbound messages are ignored.
	go func() {
		defer h.remove(ws)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[ws]; ok {
		delete(h.connections, ws)
		ws.Close()
	}
}

// Broadcast queues a message for all connected clients. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Broadcast(msg models.Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.WithField("type", msg.Type).Warn("websocket broadcast queue full, dropping message")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

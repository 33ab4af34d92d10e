package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

const writeWait = 5 * time.Second

// Handler streams session events to live-reload clients
type Handler struct {
	upgrader    websocket.Upgrader
	logger      outbound.Logger
	connections map[string]*websocketConnection
	mu          sync.RWMutex
}

// websocketConnection is one connected client; writes are serialized per connection
type websocketConnection struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewHandler(logger outbound.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // browsers on any dev origin may reload
			},
		},
		logger:      logger,
		connections: make(map[string]*websocketConnection),
	}
}

// HandleConnection upgrades the request and registers the client
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Error upgrading to WebSocket", "error", err)
		return
	}

	wsConn := &websocketConnection{
		id:   uuid.NewString(),
		conn: conn,
	}

	h.mu.Lock()
	h.connections[wsConn.id] = wsConn
	h.mu.Unlock()

	h.logger.Debug("Live reload client connected", "client", wsConn.id, "remote", r.RemoteAddr)

	if err := wsConn.writeJSON(map[string]string{"type": "connected", "clientId": wsConn.id}); err != nil {
		h.drop(wsConn)
		return
	}

	go h.handleWebSocketSession(wsConn)
}

// Publish implements outbound.EventSink; the event goes to every client
func (h *Handler) Publish(event model.WatchEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("Failed to encode event", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*websocketConnection, 0, len(h.connections))
	for _, c := range h.connections {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("Dropping live reload client", "client", c.id, "error", err)
			h.drop(c)
		}
	}
}

// ClientCount reports the number of connected clients
func (h *Handler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// handleWebSocketSession reads until the client goes away; clients only send pings
func (h *Handler) handleWebSocketSession(wsConn *websocketConnection) {
	defer h.drop(wsConn)

	for {
		messageType, data, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket error", "client", wsConn.id, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var message struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &message); err != nil {
			continue
		}
		if message.Type == "ping" {
			if err := wsConn.writeJSON(map[string]string{"type": "pong"}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) drop(wsConn *websocketConnection) {
	h.mu.Lock()
	_, exists := h.connections[wsConn.id]
	delete(h.connections, wsConn.id)
	h.mu.Unlock()

	if exists {
		wsConn.conn.Close()
	}
}

// Cleanup closes every client connection
func (h *Handler) Cleanup() {
	h.mu.Lock()
	connections := h.connections
	h.connections = make(map[string]*websocketConnection)
	h.mu.Unlock()

	for _, c := range connections {
		c.write(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Server shutting down"))
		c.conn.Close()
	}

	h.logger.Debug("WebSocket handler cleanup complete", "clients", len(connections))
}

func (c *websocketConnection) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *websocketConnection) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

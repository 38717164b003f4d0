package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/presence"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Clients only ever send pongs and close frames.
	maxMessageSize = 512
)

// Frame is the envelope written to clients.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub is the WebSocket transport. It upgrades connections, reports their
// lifecycle to the presence registry and writes outbound frames through a
// bounded per-connection outbox.
type Hub struct {
	registry *presence.Registry
	upgrader websocket.Upgrader
	outbox   int
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(registry *presence.Registry, outbox int, logger *zap.Logger) *Hub {
	if outbox < 1 {
		outbox = 1
	}
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks are left to the CORS layer in front of the hub.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		outbox:  outbox,
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades GET /ws?userId=<id>. The request blocks for the
// lifetime of the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, h.outbox),
		done:   make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)
	h.readPump(c)
}

// Send queues an event for connID. It never blocks: a full outbox or an
// unknown connection drops the frame.
func (h *Hub) Send(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("send to unknown connection dropped", zap.String("connection_id", connID))
		return
	}

	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		h.logger.Warn("outbox full, frame dropped",
			zap.String("connection_id", connID),
			zap.String("user_id", c.userID),
			zap.String("event", event),
		)
	}
}

// Close terminates every open connection. Used during shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
		_ = c.ws.Close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.registry.Connect(c.userID, c.id)
	h.logger.Info("client connected", zap.String("user_id", c.userID), zap.String("connection_id", c.id))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()
	h.registry.Disconnect(c.id)
	h.logger.Info("client disconnected", zap.String("user_id", c.userID), zap.String("connection_id", c.id))
}

// readPump consumes control frames until the peer goes away.
func (h *Hub) readPump(c *client) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write failed", zap.String("connection_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

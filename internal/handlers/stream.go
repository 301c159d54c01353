package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akmatori/alertsieve/internal/api"
	"github.com/akmatori/alertsieve/internal/executor"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamBufferSize = 64
)

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StreamHub pushes every recorded decision to connected websocket clients.
// Clients that fall behind by more than streamBufferSize messages are disconnected.
type StreamHub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
	closed   bool
	logger   *slog.Logger
}

// NewStreamHub creates an empty hub
func NewStreamHub(logger *slog.Logger) *StreamHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Access is gated by the JWT middleware
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*streamClient]struct{}),
		logger:  logger.With("component", "decision_stream"),
	}
}

// SetupRoutes configures the stream route
func (h *StreamHub) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/decisions/stream", h.HandleWebSocket)
}

// ClientCount returns the number of connected clients
func (h *StreamHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish implements executor.Publisher
func (h *StreamHub) Publish(entry executor.Entry) {
	msg, err := json.Marshal(api.EntryToDecision(entry))
	if err != nil {
		h.logger.Error("failed to encode decision", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow stream client", "remote_addr", c.conn.RemoteAddr().String())
			h.removeLocked(c)
		}
	}
}

// HandleWebSocket upgrades the connection and registers the client
func (h *StreamHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", "error", err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, streamBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("stream client connected", "remote_addr", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every client and rejects new ones
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *StreamHub) removeLocked(c *streamClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// readPump discards client messages and notices disconnects
func (h *StreamHub) readPump(c *streamClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream client read error", "error", err)
			}
			return
		}
	}
}

func (h *StreamHub) writePump(c *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = (wsPongWait * 9) / 10
	wsReadLimit   = 4096
	wsClientQueue = 16
	hubQueue      = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser origins are restricted by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// event is one message on the /ws stream.
type event struct {
	Type   string `json:"type"`
	Change string `json:"change,omitempty"`
	Data   any    `json:"data"`
}

// hub fans state events out to every connected stream client.
type hub struct {
	gauge  prometheus.Gauge
	logger *slog.Logger
	events chan []byte

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(gauge prometheus.Gauge, logger *slog.Logger) *hub {
	return &hub{
		gauge:   gauge,
		logger:  logger,
		events:  make(chan []byte, hubQueue),
		clients: map[*wsClient]struct{}{},
	}
}

// publish encodes ev and queues it without blocking the caller. Events are
// dropped when the hub is saturated; clients resync from the next one.
func (h *hub) publish(ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode stream event", "type", ev.Type, "error", err)
		return
	}
	select {
	case h.events <- data:
	default:
		h.logger.Debug("stream event dropped", "type", ev.Type)
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.events:
			h.broadcast(msg)
		}
	}
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow consumers are disconnected.
			h.removeLocked(c)
		}
	}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.gauge.Set(float64(len(h.clients)))
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.gauge.Set(float64(len(h.clients)))
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsClientQueue)}
	h.add(c)
	h.logger.Debug("stream client connected", "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump(h)
}

// readPump discards client messages and detects disconnects.
func (c *wsClient) readPump(h *hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("stream client error", "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second

	// clientBuffer absorbs bursts; a subscriber that falls this far
	// behind is disconnected rather than blocking the broadcast loop.
	clientBuffer = 64
)

// Hub fans detected signals out to websocket subscribers. Signals are
// pushed after they are durable in storage, so a subscriber never sees
// a signal that a later GET cannot return.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte

	clientCount atomic.Int64
	upgrader    websocket.Upgrader
	logger      *log.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a broadcast hub. Run must be started before clients
// connect.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 64),
		upgrader: websocket.Upgrader{
			// Browser dashboards connect from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run dispatches broadcasts until the context is cancelled, then closes
// every client connection.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*wsClient]struct{})

	defer func() {
		for c := range clients {
			close(c.send)
		}
		h.clientCount.Store(0)
		observability.DefaultMetrics.WSClientsConnected.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			observability.DefaultMetrics.WSClientsConnected.Set(float64(h.clientCount.Add(1)))
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				observability.DefaultMetrics.WSClientsConnected.Set(float64(h.clientCount.Add(-1)))
			}
		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					// Slow subscriber, drop it.
					delete(clients, c)
					close(c.send)
					observability.DefaultMetrics.WSClientsConnected.Set(float64(h.clientCount.Add(-1)))
				}
			}
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int64 {
	return h.clientCount.Load()
}

// Publish queues a signal for broadcast. Never blocks the caller; if
// the broadcast queue is full the signal is dropped from the live feed
// (it remains queryable over HTTP).
func (h *Hub) Publish(sig *domain.SignalRecord) {
	msg, err := json.Marshal(sig)
	if err != nil {
		h.logger.Printf("marshal signal %s for broadcast: %v", sig.SignalID, err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Printf("broadcast queue full, dropping signal %s from live feed", sig.SignalID)
	}
}

// HandleWS upgrades the request and serves the signal feed until the
// client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.register <- c

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound frames; it exists to process control
// messages and detect disconnects.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package realtime fans the store's change feed out to websocket clients
// and, optionally, to a Kafka topic.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phillip/levy-collector-go/metrics"
	"github.com/phillip/levy-collector-go/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced on the HTTP routes; the stream authenticates by token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the frame written to stream clients.
type Message struct {
	Type    string            `json:"type"`
	Payload store.ChangeEvent `json:"payload"`
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	collector string // empty receives every event
}

func (c *Client) wants(ev store.ChangeEvent) bool {
	return c.collector == "" || strings.EqualFold(c.collector, ev.Record.Collector)
}

type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan store.ChangeEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	metrics    *metrics.Metrics
	log        *slog.Logger

	mu    sync.Mutex
	count int
}

func NewHub(m *metrics.Metrics, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan store.ChangeEvent, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    m,
		log:        log.With("component", "stream_hub"),
	}
}

// Run owns the client set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.updateCount()
			h.log.Info("stream client registered", "collector", c.collector)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Info("stream client unregistered", "collector", c.collector)
			}

		case ev := <-h.broadcast:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) fanOut(ev store.ChangeEvent) {
	data, err := json.Marshal(Message{Type: string(ev.Type), Payload: ev})
	if err != nil {
		h.log.Error("failed to marshal stream event", "err", err)
		return
	}
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// too slow; it will reconnect
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.updateCount()
}

func (h *Hub) updateCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
	h.metrics.StreamClients(len(h.clients))
}

// Clients reports the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Broadcast hands ev to Run. It returns false once the hub has stopped.
func (h *Hub) Broadcast(ev store.ChangeEvent) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- ev:
		return true
	case <-h.done:
		return false
	}
}

// ServeWS upgrades the request and streams events to it. A non-empty
// collector limits the stream to that collector's records.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, collector string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), collector: collector}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump only services control frames; clients do not send data.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package stream broadcasts live auction events to websocket subscribers.
package stream

import (
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/observability"
)

const (
	// Per-client send buffer. A client that falls this far behind the
	// broadcast stream is disconnected rather than blocking the hub.
	defaultSendBuffer = 64

	writeTimeout = 10 * time.Second
)

// Hub fans auction events out to connected websocket clients. It
// implements http.Handler for the subscription endpoint.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// HubOptions configures a Hub. Zero values select defaults.
type HubOptions struct {
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewHub creates a Hub with no connected clients.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[stream] ", log.LstdFlags)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

type client struct {
	conn *websocket.Conn
	send chan domain.AuctionEvent
}

// ServeHTTP upgrades the request to a websocket and subscribes it to the
// event stream until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan domain.AuctionEvent, defaultSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.StreamClients.Inc()
	h.logger.Printf("client connected from %s", r.RemoteAddr)

	go h.writeLoop(c)

	// Subscribers don't send anything meaningful. Drain the connection
	// so close frames and pings are processed, then unregister.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	h.logger.Printf("client disconnected from %s", r.RemoteAddr)
}

// Broadcast delivers one event to every connected client. Clients whose
// send buffer is full are dropped.
func (h *Hub) Broadcast(ev domain.AuctionEvent) {
	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	h.metrics.EventsBroadcast.Inc()

	for _, c := range slow {
		h.logger.Printf("dropping slow client")
		h.remove(c)
	}
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients. The hub accepts no new connections after.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		h.metrics.StreamClients.Dec()
	}
}

// remove unregisters a client and closes its send channel, which ends the
// write loop and closes the connection.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.metrics.StreamClients.Dec()
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

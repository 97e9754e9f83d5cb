package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/blueledger/tally-go/internal/tally/events"
	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/gorilla/websocket"
)

// Hub fans applied-operation events out to subscribers. Websocket clients and
// SSE streams share the same subscription mechanism: a client subscribes to
// one session feed, a session key of "*" receives everything.
type Hub struct {
	logger   *logx.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn       *websocket.Conn // nil for channel-only subscribers
	sessionKey string
	send       chan events.StreamEvent

	closeOnce sync.Once
}

// NewHub creates an empty hub.
func NewHub(logger *logx.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Cross-origin policy is handled by the CORS middleware.
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// SessionKey builds the subscription key for a user/session pair.
func SessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// Serve upgrades the request and streams events for the given session key
// until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionKey string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logx.KV("error", err))
		return
	}

	c := &client{
		conn:       conn,
		sessionKey: sessionKey,
		send:       make(chan events.StreamEvent, 16),
	}
	h.add(c)
	h.logger.Debug(r.Context(), "websocket client connected", logx.KV("session_key", sessionKey))

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

// Subscribe registers a channel subscriber for a session key. The returned
// cancel function must be called when the subscriber is done.
func (h *Hub) Subscribe(sessionKey string) (<-chan events.StreamEvent, func()) {
	c := &client{
		sessionKey: sessionKey,
		send:       make(chan events.StreamEvent, 16),
	}
	h.add(c)
	return c.send, func() { h.remove(c) }
}

// Broadcast delivers an event to every subscriber of its session. Slow
// subscribers are dropped rather than blocking the caller.
func (h *Hub) Broadcast(ctx context.Context, event events.StreamEvent) {
	key := SessionKey(event.UserID, event.SessionID)

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if c.sessionKey != "*" && c.sessionKey != key {
			continue
		}
		select {
		case c.send <- event:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(ctx, "dropping slow event subscriber", logx.KV("session_key", c.sessionKey))
		h.remove(c)
	}
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (h *Hub) writeLoop(c *client) {
	for event := range c.send {
		if err := c.conn.WriteJSON(event); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	// Clients never send application data; the read loop only notices
	// disconnects.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.logger.Debug(ctx, "websocket client disconnected", logx.KV("session_key", c.sessionKey))
			h.remove(c)
			return
		}
	}
}

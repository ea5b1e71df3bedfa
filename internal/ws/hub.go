package ws

import (
	"sync"

	"github.com/gofiber/websocket/v2"
)

// Hub is the registry of live websocket clients, grouped by room. It does
// not route chat messages (those ride the change feed into each client's
// session); it exists so the server can count viewers and close every
// connection on shutdown.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

func (h *Hub) Register(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
}

func (h *Hub) Unregister(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Viewers reports how many clients currently hold the room open.
func (h *Hub) Viewers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// CloseAll disconnects every client; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, members := range h.rooms {
		for c := range members {
			c.CloseSend()
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
}

// Client wraps one websocket connection with a buffered outbound queue so
// slow readers never block the event path.
type Client struct {
	UserID string
	conn   *websocket.Conn

	mu     sync.Mutex
	send   chan any
	closed bool
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, conn: conn, send: make(chan any, 64)}
}

// Send queues a frame, dropping it if the client is lagging or gone.
func (c *Client) Send(frame any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WritePump drains the outbound queue onto the wire; returns when the
// queue closes or a write fails.
func (c *Client) WritePump() {
	for frame := range c.send {
		if err := c.conn.WriteJSON(frame); err != nil {
			return
		}
	}
}

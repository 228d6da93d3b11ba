package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types delivered to the browser widget.
const (
	EventWelcome              = "welcome"
	EventResponse             = "response"
	EventOperatorConnected    = "operator-connected"
	EventOperatorRejected     = "operator-rejected"
	EventOperatorDisconnected = "operator-disconnected"
	EventOperatorMessage      = "operator-message"
	EventError                = "error"
)

const writeWait = 10 * time.Second

// Client wraps one websocket connection. Gorilla connections allow a single
// concurrent writer, so every outbound frame goes through the client mutex.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Send writes one JSON envelope {type, ...payload} to the connection.
func (c *Client) Send(event string, payload map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(envelope(event, payload))
}

// Ping sends a websocket ping control frame.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close tears the connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hub routes events to rooms. A room is named by a session id and holds every
// browser tab that joined that session; emits are scoped so only those tabs
// receive them. Room membership is not authenticated: any client that knows a
// session id may join its room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join subscribes the client to a room, creating the room on first use.
func (h *Hub) Join(room string, c *Client) {
	if room == "" || c == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave removes the client from a room, dropping the room when it empties.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Remove drops the client from every room it joined.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Emit delivers one event to every member of the room and returns how many
// clients received it. Failed writes evict the client.
func (h *Hub) Emit(room, event string, payload map[string]any) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if err := c.Send(event, payload); err != nil {
			log.Printf("[realtime] write failed room=%s: %v", room, err)
			h.Remove(c)
			c.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// RoomSize reports current membership, mainly for diagnostics.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func envelope(event string, payload map[string]any) map[string]any {
	env := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		env[k] = v
	}
	env["type"] = event
	return env
}

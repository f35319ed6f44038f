// Package hub coordinates the real-time broadcast layer: one
// process-wide websocket hub with rooms keyed by a game's public token.
// Committed mutations broadcast the authoritative full game document to
// a room; ephemeral per-keystroke events are relayed verbatim to the
// other room members with zero persistence and zero validation.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Server-to-client event names.
const (
	EventGameUpdated     = "game-updated"
	EventFieldUpdated    = "field-updated"
	EventGameNameUpdated = "game-name-updated"
	EventGameDateUpdated = "game-date-updated"
	EventRowActionDone   = "row-action-updated"
)

// Envelope is the wire format for every hub message, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Token string          `json:"token,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one websocket connection known to the hub.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewClient wraps a websocket connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Send writes one message guarded by the client's write mutex and a
// write deadline, so concurrent broadcasts never interleave frames.
func (c *Client) Send(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks which clients are viewing which game token.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]bool
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// Join adds a client to a token's room.
func (h *Hub) Join(token string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[token]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[token] = room
	}
	room[c] = true
}

// Leave removes a client from a token's room, dropping empty rooms.
func (h *Hub) Leave(token string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[token]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, token)
		}
	}
}

// Remove drops a client from every room, for connection teardown.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for token, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, token)
		}
	}
}

// BroadcastGame sends the authoritative full game document to every
// client in the token's room. Best-effort and at-most-once: a failed
// write is logged and the client dropped, never surfaced to the caller.
func (h *Hub) BroadcastGame(token string, game any) {
	data, err := json.Marshal(game)
	if err != nil {
		slog.Error("Failed to marshal game for broadcast", "token", token, "error", err)
		return
	}
	h.send(token, nil, Envelope{Event: EventGameUpdated, Token: token, Data: data})
}

// Relay forwards an ephemeral client event to every other member of the
// token's room, unmodified. Nothing is persisted or validated; the
// authoritative game-updated broadcast after the committed mutation
// supersedes whatever was relayed here.
func (h *Hub) Relay(token string, sender *Client, event string, data json.RawMessage) {
	relayed, ok := relayedEvent(event)
	if !ok {
		return
	}
	h.send(token, sender, Envelope{Event: relayed, Token: token, Data: data})
}

func (h *Hub) send(token string, exclude *Client, env Envelope) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.rooms[token]))
	for c := range h.rooms[token] {
		if c != exclude {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.Send(env); err != nil {
			slog.Warn("Dropping unreachable client", "token", token, "event", env.Event, "error", err)
			h.Remove(c)
		}
	}
}

// Client-to-server ephemeral event names and their server-to-client
// counterparts.
func relayedEvent(event string) (string, bool) {
	switch event {
	case "field-update":
		return EventFieldUpdated, true
	case "game-name-update":
		return EventGameNameUpdated, true
	case "game-date-update":
		return EventGameDateUpdated, true
	case "row-action":
		return EventRowActionDone, true
	default:
		return "", false
	}
}

// Process-wide default hub. Constructed once at startup; mutation paths
// that broadcast check availability instead of assuming initialization.
var (
	defaultMu  sync.RWMutex
	defaultHub *Hub
)

// SetDefault installs the process-wide hub.
func SetDefault(h *Hub) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultHub = h
}

// Default returns the process-wide hub, or ok=false before SetDefault.
func Default() (*Hub, bool) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultHub, defaultHub != nil
}

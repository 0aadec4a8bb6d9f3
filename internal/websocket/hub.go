package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a live update pushed to an event's room.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub keeps one room of clients per event and broadcasts within a room.
type Hub struct {
	mu             sync.RWMutex
	rooms          map[int64]map[*Client]struct{}
	logger         *slog.Logger
	originPatterns []string
}

// NewHub creates a new Hub. originPatterns are the cross-origin hosts allowed
// to connect, in coder/websocket AcceptOptions syntax.
func NewHub(logger *slog.Logger, originPatterns ...string) *Hub {
	return &Hub{
		rooms:          make(map[int64]map[*Client]struct{}),
		logger:         logger.With("component", "websocket"),
		originPatterns: originPatterns,
	}
}

// Register adds a client to its event's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.eventID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.eventID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Empty rooms are dropped.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.eventID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.eventID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every client watching eventID.
func (h *Hub) Broadcast(eventID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[eventID] {
		select {
		case c.send <- data:
		default:
			// buffer full, drop
		}
	}
}

// ClientCount returns the number of clients watching eventID.
func (h *Hub) ClientCount(eventID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// RoomCount returns the number of events with at least one client.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is the typed message fanned out to room subscribers.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the mapping from group id to the set of live connections
// subscribed to it. All methods are safe for concurrent use; Publish sees a
// consistent snapshot of a room's subscribers, never a partially-updated set.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Subscribe adds the connection to the room for groupID. Re-subscribing is a
// no-op, not an error.
func (h *Hub) Subscribe(c *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[groupID] = room
	}
	room[c] = struct{}{}
	c.joined[groupID] = struct{}{}
}

// Unsubscribe removes the connection from the room for groupID. Empty rooms
// are deleted so the table does not grow with dead group ids.
func (h *Hub) Unsubscribe(c *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c, groupID)
}

func (h *Hub) unsubscribeLocked(c *Client, groupID string) {
	room, ok := h.rooms[groupID]
	if !ok {
		return
	}
	delete(room, c)
	delete(c.joined, groupID)
	if len(room) == 0 {
		delete(h.rooms, groupID)
	}
}

// Remove drops the connection from every room it was in. Called automatically
// when a connection closes.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for groupID := range c.joined {
		h.unsubscribeLocked(c, groupID)
	}
}

// Publish delivers the event to every connection currently subscribed to
// groupID, and to no others. Delivery is at-most-once per subscriber: a
// subscriber whose send buffer is full misses the event rather than blocking
// the publisher. Returns how many subscribers received and missed the event.
func (h *Hub) Publish(groupID string, e Event) (delivered, dropped int) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "type", e.Type, "error", err)
		return 0, 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[groupID] {
		select {
		case c.send <- data:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// Subscribers returns the number of connections in the room for groupID.
func (h *Hub) Subscribers(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}

// Rooms returns the number of rooms with at least one subscriber.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

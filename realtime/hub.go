package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"scrap-pickup/logger"
)

// Hub is the session registry. It tracks live clients, their per-user
// lookup and room membership, and fans out events. All maps are guarded by
// one RWMutex; it is safe for concurrent connect, disconnect and broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[uint]*Client
	rooms   map[string]map[*Client]struct{}

	counter uint64
}

// NewHub creates an empty session registry.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[uint]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// NextClientID hands out a connection identifier for logging.
func (h *Hub) NextClientID() string {
	return fmt.Sprintf("client-%d", atomic.AddUint64(&h.counter, 1))
}

func bookingRoom(bookingID string) string { return "booking_" + bookingID }
func roleRoom(role string) string         { return "role_" + role }

// Register adds a client and joins it to its role room. A previous
// connection of the same user is replaced and closed.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	previous := h.byUser[c.UserID]
	h.clients[c] = struct{}{}
	h.byUser[c.UserID] = c
	h.joinLocked(c, roleRoom(c.Role))
	h.mu.Unlock()

	if previous != nil && previous != c {
		h.Unregister(previous)
	}
	logger.Info(fmt.Sprintf("[realtime] %s registered user %d as %s", c.id, c.UserID, c.Role))
}

// Unregister removes the client from the registry and every room and closes
// it. Persisted data is untouched.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	if h.byUser[c.UserID] == c {
		delete(h.byUser, c.UserID)
	}
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.shutdown()
	logger.Info(fmt.Sprintf("[realtime] %s unregistered", c.id))
}

// JoinBooking subscribes the client to a booking's room.
func (h *Hub) JoinBooking(c *Client, bookingID string) {
	h.mu.Lock()
	h.joinLocked(c, bookingRoom(bookingID))
	h.mu.Unlock()
}

// LeaveBooking unsubscribes the client from a booking's room.
func (h *Hub) LeaveBooking(c *Client, bookingID string) {
	h.mu.Lock()
	room := bookingRoom(bookingID)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// InBooking reports whether the client is subscribed to the booking's room.
func (h *Hub) InBooking(c *Client, bookingID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[bookingRoom(bookingID)][c]
	return ok
}

// ConnectedCount returns the number of live clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToBooking fans an event out to every member of the booking room.
// Delivery is buffered per client and never blocks the caller.
func (h *Hub) BroadcastToBooking(bookingID string, event string, data interface{}) {
	msg, err := h.encode(Event{Type: event, BookingID: bookingID, Data: data, Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[bookingRoom(bookingID)]))
	for c := range h.rooms[bookingRoom(bookingID)] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.Enqueue(msg)
	}
}

// BroadcastToRole fans an event out to every connection of the given role.
func (h *Hub) BroadcastToRole(role string, event string, data interface{}) {
	msg, err := h.encode(Event{Type: event, Data: data, Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roleRoom(role)]))
	for c := range h.rooms[roleRoom(role)] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.Enqueue(msg)
	}
}

// SendToUser delivers an event to the user's live connection if present.
func (h *Hub) SendToUser(userID uint, event string, data interface{}) {
	msg, err := h.encode(Event{Type: event, Data: data, Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	c := h.byUser[userID]
	h.mu.RUnlock()

	if c != nil {
		c.Enqueue(msg)
	}
}

// SendToClient delivers an event to one specific connection.
func (h *Hub) SendToClient(c *Client, event string, bookingID string, data interface{}) {
	msg, err := h.encode(Event{Type: event, BookingID: bookingID, Data: data, Timestamp: time.Now()})
	if err != nil {
		return
	}
	c.Enqueue(msg)
}

func (h *Hub) encode(e Event) ([]byte, error) {
	msg, err := json.Marshal(e)
	if err != nil {
		logger.Error("Failed to marshal realtime event", err)
		return nil, err
	}
	return msg, nil
}

package session

import "sync"

// Hub owns the connection→room relation for all active whiteboard sessions.
// A connection belongs to at most one room at a time: joining while already
// joined leaves the previous room first.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	membership map[*Client]string
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		membership: make(map[*Client]string),
	}
}

func (h *Hub) Get(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

func (h *Hub) getOrCreate(id string) *Room {
	if r, ok := h.rooms[id]; ok {
		return r
	}
	r := NewRoom(id)
	h.rooms[id] = r
	return r
}

// JoinRoom moves c into the room with the given id, leaving any prior room.
// It returns the joined room and, when c was joined elsewhere, the room it
// left.
func (h *Hub) JoinRoom(c *Client, id string) (joined *Room, left *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prevID, ok := h.membership[c]; ok {
		if prevID == id {
			// Idempotent re-join of the same room.
			return h.rooms[prevID], nil
		}
		left = h.leaveLocked(c, prevID)
	}

	joined = h.getOrCreate(id)
	joined.Join(c)
	h.membership[c] = id
	return joined, left
}

// LeaveRoom removes c from its room, if any, and returns the room it left.
func (h *Hub) LeaveRoom(c *Client) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.membership[c]
	if !ok {
		return nil, false
	}
	return h.leaveLocked(c, id), true
}

func (h *Hub) leaveLocked(c *Client, id string) *Room {
	room := h.rooms[id]
	delete(h.membership, c)
	if room == nil {
		return nil
	}
	if remaining := room.Leave(c); remaining == 0 {
		delete(h.rooms, id)
	}
	return room
}

// RoomOf returns the room c is currently joined to.
func (h *Hub) RoomOf(c *Client) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.membership[c]
	if !ok {
		return nil, false
	}
	r, ok := h.rooms[id]
	return r, ok
}

// ParticipantCount reports the live connection count for a room id.
func (h *Hub) ParticipantCount(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	if !ok {
		return 0
	}
	return r.ClientCount()
}

package session

import (
	"sync"

	"boardsync/internal/models"
)

// Room holds the set of live connections joined to one whiteboard session.
// Durable canvas state lives in the store; the room only fans events out.
type Room struct {
	ID      string
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewRoom(id string) *Room {
	return &Room{ID: id, clients: make(map[*Client]struct{})}
}

func (r *Room) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

// Leave removes c and returns the number of clients remaining.
func (r *Room) Leave(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
	return len(r.clients)
}

func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Broadcast delivers frame to every client in the room except sender. Used
// for cursor and raw stroke relay, where the sender already rendered its own
// input locally.
func (r *Room) Broadcast(sender *Client, frame models.Frame) {
	for _, c := range r.recipients() {
		if c == sender {
			continue
		}
		c.Send(frame)
	}
}

// BroadcastAll delivers frame to every client including the sender, so the
// sender's state machine is driven by the canonical event rather than
// trusting its optimistic copy indefinitely.
func (r *Room) BroadcastAll(frame models.Frame) {
	for _, c := range r.recipients() {
		c.Send(frame)
	}
}

func (r *Room) recipients() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

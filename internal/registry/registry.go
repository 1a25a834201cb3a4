package registry

import (
	"sync"
	"time"

	"boardsync/internal/models"
)

// roomState holds the four ephemeral per-session maps for one room.
type roomState struct {
	presence map[string]models.Presence
	activity map[string]models.Activity
	camera   map[string]models.Camera
	cursor   map[string]models.Cursor
}

func newRoomState() *roomState {
	return &roomState{
		presence: make(map[string]models.Presence),
		activity: make(map[string]models.Activity),
		camera:   make(map[string]models.Camera),
		cursor:   make(map[string]models.Cursor),
	}
}

// Registry is the process-memory table of per-participant presence, activity,
// camera, and cursor state. Nothing here is persisted: a restart loses it all
// and clients resend on reconnect. Entries are removed eagerly on disconnect.
//
// Construct one Registry at process start and pass it by reference; there is
// no package-level instance.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomState
	now   func() time.Time
}

func New() *Registry {
	return &Registry{rooms: make(map[string]*roomState), now: time.Now}
}

// SetClock overrides the timestamp clock (used in tests).
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func (r *Registry) room(roomID string) *roomState {
	state, ok := r.rooms[roomID]
	if !ok {
		state = newRoomState()
		r.rooms[roomID] = state
	}
	return state
}

// UpsertPresence merges patch into the session's presence record and returns
// the merged record. LastActive is stamped on every call.
func (r *Registry) UpsertPresence(roomID, sessionID string, patch models.PresencePatch) models.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.room(roomID)
	rec, ok := state.presence[sessionID]
	if !ok {
		rec = models.Presence{SessionID: sessionID}
	}
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Color != nil {
		rec.Color = *patch.Color
	}
	if patch.Idle != nil {
		rec.Idle = *patch.Idle
	}
	rec.LastActive = r.now()
	state.presence[sessionID] = rec
	return rec
}

// UpsertActivity merges patch and stamps the record with now.
func (r *Registry) UpsertActivity(roomID, sessionID string, patch models.ActivityPatch) models.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.room(roomID)
	rec, ok := state.activity[sessionID]
	if !ok {
		rec = models.Activity{SessionID: sessionID}
	}
	if patch.Drawing != nil {
		rec.Drawing = *patch.Drawing
	}
	if patch.Typing != nil {
		rec.Typing = *patch.Typing
	}
	rec.Timestamp = r.now()
	state.activity[sessionID] = rec
	return rec
}

func (r *Registry) UpsertCamera(roomID, sessionID string, patch models.CameraPatch) models.Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.room(roomID)
	rec, ok := state.camera[sessionID]
	if !ok {
		rec = models.Camera{SessionID: sessionID, Scale: 1}
	}
	if patch.X != nil {
		rec.X = *patch.X
	}
	if patch.Y != nil {
		rec.Y = *patch.Y
	}
	if patch.Scale != nil {
		rec.Scale = *patch.Scale
	}
	state.camera[sessionID] = rec
	return rec
}

func (r *Registry) UpsertCursor(roomID, sessionID string, point models.Point) models.Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.room(roomID)
	rec := models.Cursor{SessionID: sessionID, X: point.X, Y: point.Y}
	state.cursor[sessionID] = rec
	return rec
}

// Remove drops all four entries for the session. Called on disconnect.
func (r *Registry) Remove(roomID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(state.presence, sessionID)
	delete(state.activity, sessionID)
	delete(state.camera, sessionID)
	delete(state.cursor, sessionID)
	if len(state.presence) == 0 && len(state.activity) == 0 &&
		len(state.camera) == 0 && len(state.cursor) == 0 {
		delete(r.rooms, roomID)
	}
}

// PresenceSnapshot returns a copy of the room's presence table, for the
// join-time unicast.
func (r *Registry) PresenceSnapshot(roomID string) map[string]models.Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.Presence)
	if state, ok := r.rooms[roomID]; ok {
		for id, rec := range state.presence {
			out[id] = rec
		}
	}
	return out
}

func (r *Registry) ActivitySnapshot(roomID string) map[string]models.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.Activity)
	if state, ok := r.rooms[roomID]; ok {
		for id, rec := range state.activity {
			out[id] = rec
		}
	}
	return out
}

func (r *Registry) CameraSnapshot(roomID string) map[string]models.Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.Camera)
	if state, ok := r.rooms[roomID]; ok {
		for id, rec := range state.camera {
			out[id] = rec
		}
	}
	return out
}

func (r *Registry) CursorSnapshot(roomID string) map[string]models.Cursor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.Cursor)
	if state, ok := r.rooms[roomID]; ok {
		for id, rec := range state.cursor {
			out[id] = rec
		}
	}
	return out
}

package store

import (
	"context"
	"sync"
	"time"

	"boardsync/internal/models"
)

// MemStore is an in-process RoomStore with the same semantics as the Mongo
// adapter. It backs tests and store-less local runs. All reads return deep
// copies so callers never alias stored state.
type MemStore struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room
	now   func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{rooms: make(map[string]*models.Room), now: time.Now}
}

// SetClock overrides the activity-stamp clock (used in tests).
func (s *MemStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (s *MemStore) CreateRoomIfAbsent(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return cloneRoom(room), nil
	}
	now := s.now()
	room := &models.Room{
		RoomID:       roomID,
		CreatedAt:    now,
		LastActivity: now,
		Shapes:       []models.Shape{},
		DrawingData:  []models.DrawingEntry{},
	}
	s.rooms[roomID] = room
	return cloneRoom(room), nil
}

func (s *MemStore) AddShape(_ context.Context, roomID string, shape models.Shape) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Shapes = append(room.Shapes, cloneShape(shape))
	room.LastActivity = s.now()
	return nil
}

func (s *MemStore) PatchShape(_ context.Context, roomID, shapeID string, patch models.ShapePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	for i := range room.Shapes {
		if room.Shapes[i].ID == shapeID {
			patch.ApplyTo(&room.Shapes[i])
			room.LastActivity = s.now()
			return nil
		}
	}
	return ErrShapeNotFound
}

func (s *MemStore) DeleteShape(_ context.Context, roomID, shapeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	for i := range room.Shapes {
		if room.Shapes[i].ID == shapeID {
			room.Shapes = append(room.Shapes[:i], room.Shapes[i+1:]...)
			room.LastActivity = s.now()
			return nil
		}
	}
	return ErrShapeNotFound
}

func (s *MemStore) ReplaceShapes(_ context.Context, roomID string, shapes []models.Shape) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	next := make([]models.Shape, 0, len(shapes))
	for _, sh := range shapes {
		next = append(next, cloneShape(sh))
	}
	room.Shapes = next
	room.LastActivity = s.now()
	return nil
}

func (s *MemStore) AppendStroke(_ context.Context, roomID string, stroke models.Stroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	st := cloneStroke(stroke)
	room.DrawingData = append(room.DrawingData, models.DrawingEntry{
		Type:      "stroke",
		Data:      &st,
		Timestamp: s.now(),
	})
	room.LastActivity = s.now()
	return nil
}

func (s *MemStore) RemoveStroke(_ context.Context, roomID, strokeID string) (models.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Stroke{}, ErrRoomNotFound
	}
	for i := len(room.DrawingData) - 1; i >= 0; i-- {
		e := room.DrawingData[i]
		if e.Type == "stroke" && e.Data != nil && e.Data.ID == strokeID {
			removed := cloneStroke(*e.Data)
			room.DrawingData = append(room.DrawingData[:i], room.DrawingData[i+1:]...)
			room.LastActivity = s.now()
			return removed, nil
		}
	}
	return models.Stroke{}, ErrStrokeNotFound
}

func (s *MemStore) RemoveLatestStroke(_ context.Context, roomID, author string) (models.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Stroke{}, ErrRoomNotFound
	}
	idx := -1
	for i := len(room.DrawingData) - 1; i >= 0; i-- {
		e := room.DrawingData[i]
		if e.Type != "stroke" || e.Data == nil {
			continue
		}
		if e.Data.Author == author {
			idx = i
			break
		}
		if idx == -1 {
			idx = i // latest of any author, kept as fallback
		}
	}
	if idx == -1 {
		return models.Stroke{}, ErrStrokeNotFound
	}
	removed := cloneStroke(*room.DrawingData[idx].Data)
	room.DrawingData = append(room.DrawingData[:idx], room.DrawingData[idx+1:]...)
	room.LastActivity = s.now()
	return removed, nil
}

func (s *MemStore) ClearAll(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	now := s.now()
	room.Shapes = []models.Shape{}
	room.DrawingData = []models.DrawingEntry{{Type: "clear", Timestamp: now}}
	room.LastActivity = now
	return nil
}

func (s *MemStore) ListInactiveRooms(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, room := range s.rooms {
		if room.LastActivity.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemStore) DeleteRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	delete(s.rooms, roomID)
	return nil
}

func cloneRoom(src *models.Room) *models.Room {
	out := &models.Room{
		RoomID:       src.RoomID,
		CreatedAt:    src.CreatedAt,
		LastActivity: src.LastActivity,
		Shapes:       make([]models.Shape, 0, len(src.Shapes)),
		DrawingData:  make([]models.DrawingEntry, 0, len(src.DrawingData)),
	}
	for _, sh := range src.Shapes {
		out.Shapes = append(out.Shapes, cloneShape(sh))
	}
	for _, e := range src.DrawingData {
		entry := models.DrawingEntry{Type: e.Type, Timestamp: e.Timestamp}
		if e.Data != nil {
			st := cloneStroke(*e.Data)
			entry.Data = &st
		}
		out.DrawingData = append(out.DrawingData, entry)
	}
	return out
}

func cloneShape(src models.Shape) models.Shape {
	out := src
	if src.Points != nil {
		out.Points = append([]models.Point(nil), src.Points...)
	}
	return out
}

func cloneStroke(src models.Stroke) models.Stroke {
	out := src
	if src.Points != nil {
		out.Points = append([]models.Point(nil), src.Points...)
	}
	return out
}

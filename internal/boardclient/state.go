// Package boardclient mirrors authoritative room state on the client,
// applies locally-initiated mutations optimistically, and keeps a reversible
// command history for undo/redo.
package boardclient

import (
	"sync"

	"boardsync/internal/models"
)

// Emitter sends events toward the mutation router. The websocket send path
// implements it in production; tests capture frames.
type Emitter interface {
	Emit(frame models.Frame)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(models.Frame)

func (f EmitterFunc) Emit(frame models.Frame) { f(frame) }

// State is the client's optimistic mirror of one room: the shape collection
// and the stroke log, plus the per-client undo/redo stacks. Every
// locally-initiated structural mutation goes through Submit, which always
// applies the change first, then emits the event, then records the inverse.
type State struct {
	mu      sync.Mutex
	emitter Emitter

	shapes     map[string]models.Shape
	shapeOrder []string
	strokes    []models.Stroke
	undoStack  []Command
	redoStack  []Command
	gesture    *gestureState
	lastError  *models.ErrorPayload
}

func NewState(emitter Emitter) *State {
	return &State{
		emitter: emitter,
		shapes:  make(map[string]models.Shape),
	}
}

/*** Read accessors ***/

func (s *State) Shape(id string) (models.Shape, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shapes[id]
	return sh, ok
}

// Shapes returns the shape collection in insertion order.
func (s *State) Shapes() []models.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shapesLocked()
}

func (s *State) shapesLocked() []models.Shape {
	out := make([]models.Shape, 0, len(s.shapeOrder))
	for _, id := range s.shapeOrder {
		if sh, ok := s.shapes[id]; ok {
			out = append(out, sh)
		}
	}
	return out
}

func (s *State) Strokes() []models.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Stroke, len(s.strokes))
	copy(out, s.strokes)
	return out
}

// LastError returns the most recent server-reported failure, if any. The
// optimistic state is never rolled back automatically; the user undoes
// rejected changes manually.
func (s *State) LastError() *models.ErrorPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

/*** Local mutation primitives (no history, no emit) ***/

func (s *State) putShapeLocked(shape models.Shape) {
	if _, exists := s.shapes[shape.ID]; !exists {
		s.shapeOrder = append(s.shapeOrder, shape.ID)
	}
	s.shapes[shape.ID] = shape
}

func (s *State) removeShapeLocked(id string) {
	if _, exists := s.shapes[id]; !exists {
		return
	}
	delete(s.shapes, id)
	for i, sid := range s.shapeOrder {
		if sid == id {
			s.shapeOrder = append(s.shapeOrder[:i], s.shapeOrder[i+1:]...)
			break
		}
	}
}

func (s *State) removeStrokeLocked(id string) {
	for i := len(s.strokes) - 1; i >= 0; i-- {
		if s.strokes[i].ID == id {
			s.strokes = append(s.strokes[:i], s.strokes[i+1:]...)
			return
		}
	}
}

func (s *State) hasStrokeLocked(id string) bool {
	for _, st := range s.strokes {
		if st.ID == id {
			return true
		}
	}
	return false
}

/*** Reconciliation ***/

// ApplyRemote reconciles a canonical server event into local state. It is
// idempotent: re-applying an event the local state already reflects is a
// no-op. When local state disagrees, whether from a rejected mutation or
// another participant's concurrent edit, the canonical event overwrites it:
// the last broadcast received wins, per shape, per field patch.
func (s *State) ApplyRemote(frame models.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch frame.Kind {
	case models.EventSnapshot:
		var snap models.Snapshot
		if decode(frame.Data, &snap) != nil {
			return
		}
		s.shapes = make(map[string]models.Shape)
		s.shapeOrder = nil
		for _, sh := range snap.Shapes {
			s.putShapeLocked(sh)
		}
		s.strokes = append([]models.Stroke(nil), snap.Strokes...)

	case models.EventShapeAdd, models.EventShapeAdded:
		var shape models.Shape
		if decode(frame.Data, &shape) != nil || shape.ID == "" {
			return
		}
		s.putShapeLocked(shape)

	case models.EventShapeUpdate:
		var upd models.ShapeUpdate
		if decode(frame.Data, &upd) != nil || upd.ID == "" {
			return
		}
		if sh, ok := s.shapes[upd.ID]; ok {
			upd.Patch.ApplyTo(&sh)
			s.shapes[upd.ID] = sh
		}

	case models.EventShapeDelete:
		var del models.ShapeDelete
		if decode(frame.Data, &del) != nil {
			return
		}
		s.removeShapeLocked(del.ID)

	case models.EventDrawEnd:
		var stroke models.Stroke
		if decode(frame.Data, &stroke) != nil || stroke.ID == "" {
			return
		}
		if !s.hasStrokeLocked(stroke.ID) {
			s.strokes = append(s.strokes, stroke)
		}

	case models.EventStrokeReplay:
		var replay models.StrokeReplay
		if decode(frame.Data, &replay) != nil {
			return
		}
		s.strokes = append([]models.Stroke(nil), replay.Strokes...)

	case models.EventClearCanvas:
		s.shapes = make(map[string]models.Shape)
		s.shapeOrder = nil
		s.strokes = nil

	case models.EventError:
		var payload models.ErrorPayload
		if decode(frame.Data, &payload) == nil {
			s.lastError = &payload
		}

	default:
		// Presence, activity, camera, cursor and participant updates do not
		// touch canvas state.
	}
}

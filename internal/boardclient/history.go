package boardclient

import (
	"encoding/json"

	"github.com/google/uuid"

	"boardsync/internal/models"
)

// Command is one reversible local edit. Do re-applies the change and
// re-emits its event; Undo applies the inverse change and emits the inverse
// event. Both close over snapshots of the affected state taken when the
// command was built.
type Command struct {
	Do   func()
	Undo func()
}

// Submit runs cmd.Do (apply locally, then emit) and records it on the undo
// stack. Pushing always clears the redo stack.
func (s *State) Submit(cmd Command) {
	cmd.Do()
	s.mu.Lock()
	s.undoStack = append(s.undoStack, cmd)
	s.redoStack = nil
	s.mu.Unlock()
}

// UndoLast pops the undo stack, runs the inverse, and moves the command to
// the redo stack. No-op on an empty stack.
func (s *State) UndoLast() {
	s.mu.Lock()
	n := len(s.undoStack)
	if n == 0 {
		s.mu.Unlock()
		return
	}
	cmd := s.undoStack[n-1]
	s.undoStack = s.undoStack[:n-1]
	s.mu.Unlock()

	cmd.Undo()

	s.mu.Lock()
	s.redoStack = append(s.redoStack, cmd)
	s.mu.Unlock()
}

// RedoLast pops the redo stack, re-runs the command, and moves it back to
// the undo stack. No-op on an empty stack.
func (s *State) RedoLast() {
	s.mu.Lock()
	n := len(s.redoStack)
	if n == 0 {
		s.mu.Unlock()
		return
	}
	cmd := s.redoStack[n-1]
	s.redoStack = s.redoStack[:n-1]
	s.mu.Unlock()

	cmd.Do()

	s.mu.Lock()
	s.undoStack = append(s.undoStack, cmd)
	s.mu.Unlock()
}

func (s *State) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undoStack) > 0
}

func (s *State) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redoStack) > 0
}

/*** Structural mutations ***/

// AddShape applies the shape locally, emits shape:add, and records the
// inverse delete. Returns the shape id (assigned when absent).
func (s *State) AddShape(shape models.Shape) string {
	if shape.ID == "" {
		shape.ID = uuid.New().String()
	}
	s.Submit(Command{
		Do: func() {
			s.mu.Lock()
			s.putShapeLocked(shape)
			s.mu.Unlock()
			s.emitter.Emit(models.Frame{Kind: models.EventShapeAdd, Data: shape})
		},
		Undo: func() {
			s.mu.Lock()
			s.removeShapeLocked(shape.ID)
			s.mu.Unlock()
			s.emitter.Emit(models.Frame{Kind: models.EventShapeDelete, Data: models.ShapeDelete{ID: shape.ID}})
		},
	})
	return shape.ID
}

// DeleteShape removes the shape locally and emits shape:delete. The command
// closes over a snapshot of the shape so undo can restore it.
func (s *State) DeleteShape(id string) {
	s.mu.Lock()
	snapshot, ok := s.shapes[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.Submit(Command{
		Do: func() {
			s.mu.Lock()
			s.removeShapeLocked(id)
			s.mu.Unlock()
			s.emitter.Emit(models.Frame{Kind: models.EventShapeDelete, Data: models.ShapeDelete{ID: id}})
		},
		Undo: func() {
			s.mu.Lock()
			s.putShapeLocked(snapshot)
			s.mu.Unlock()
			s.emitter.Emit(models.Frame{Kind: models.EventShapeAdd, Data: snapshot})
		},
	})
}

// UpdateShape applies a partial patch locally and emits shape:update. The
// inverse patch snapshots only the fields the patch touches.
func (s *State) UpdateShape(id string, patch models.ShapePatch) {
	if patch.IsEmpty() {
		return
	}
	s.mu.Lock()
	current, ok := s.shapes[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	inverse := inversePatch(current, patch)
	s.Submit(s.patchCommand(id, patch, inverse))
}

func (s *State) patchCommand(id string, patch, inverse models.ShapePatch) Command {
	apply := func(p models.ShapePatch) {
		s.mu.Lock()
		if sh, ok := s.shapes[id]; ok {
			p.ApplyTo(&sh)
			s.shapes[id] = sh
		}
		s.mu.Unlock()
		s.emitter.Emit(models.Frame{Kind: models.EventShapeUpdate, Data: models.ShapeUpdate{ID: id, Patch: p}})
	}
	return Command{
		Do:   func() { apply(patch) },
		Undo: func() { apply(inverse) },
	}
}

// Clear wipes the canvas locally and emits canvas:clear. Undo restores the
// snapshot: strokes re-emit as draw:end (which re-materializes their path
// shapes server-side), remaining shapes re-emit as shape:add.
func (s *State) Clear() {
	s.mu.Lock()
	shapeSnap := s.shapesLocked()
	strokeSnap := make([]models.Stroke, len(s.strokes))
	copy(strokeSnap, s.strokes)
	s.mu.Unlock()

	s.Submit(Command{
		Do: func() {
			s.mu.Lock()
			s.shapes = make(map[string]models.Shape)
			s.shapeOrder = nil
			s.strokes = nil
			s.mu.Unlock()
			s.emitter.Emit(models.Frame{Kind: models.EventClearCanvas})
		},
		Undo: func() {
			s.mu.Lock()
			for _, sh := range shapeSnap {
				s.putShapeLocked(sh)
			}
			s.strokes = append([]models.Stroke(nil), strokeSnap...)
			s.mu.Unlock()
			for _, st := range strokeSnap {
				s.emitter.Emit(models.Frame{Kind: models.EventDrawEnd, Data: st})
			}
			for _, sh := range shapeSnap {
				if sh.Type == models.ShapePath {
					continue // restored via its stroke
				}
				s.emitter.Emit(models.Frame{Kind: models.EventShapeAdd, Data: sh})
			}
		},
	})
}

// CompleteStroke records a finished freehand gesture: the stroke joins the
// local log and its path-shape twin joins the shape mirror, then draw:end is
// emitted. Undo removes both and asks the server to drop the log entry.
// A stroke without points (a tap that sampled nothing) is discarded, matching
// the server-side validation.
func (s *State) CompleteStroke(stroke models.Stroke) string {
	if len(stroke.Points) == 0 {
		return ""
	}
	if stroke.ID == "" {
		stroke.ID = uuid.New().String()
	}
	shape := pathShape(stroke)
	s.Submit(Command{
		Do: func() {
			s.mu.Lock()
			if !s.hasStrokeLocked(stroke.ID) {
				s.strokes = append(s.strokes, stroke)
			}
			s.putShapeLocked(shape)
			s.mu.Unlock()
			s.emitter.Emit(models.Frame{Kind: models.EventDrawEnd, Data: stroke})
		},
		Undo: func() {
			s.mu.Lock()
			s.removeStrokeLocked(stroke.ID)
			s.removeShapeLocked(stroke.ID)
			s.mu.Unlock()
			s.emitter.Emit(models.Frame{Kind: models.EventDrawingUndo, Data: models.UndoRequest{StrokeID: stroke.ID}})
		},
	})
	return stroke.ID
}

/*** Gestures ***/

type gestureState struct {
	shapeID string
	start   models.Shape
}

// BeginGesture starts a drag/resize interaction on a shape. Intermediate
// frames go through UpdateGesture; only EndGesture commits a command, so the
// undo granularity stays at one user gesture.
func (s *State) BeginGesture(shapeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shapes[shapeID]
	if !ok {
		return false
	}
	s.gesture = &gestureState{shapeID: shapeID, start: sh}
	return true
}

// UpdateGesture applies an intermediate patch locally and relays it live,
// without touching the history stacks.
func (s *State) UpdateGesture(patch models.ShapePatch) {
	s.mu.Lock()
	g := s.gesture
	if g == nil {
		s.mu.Unlock()
		return
	}
	if sh, ok := s.shapes[g.shapeID]; ok {
		patch.ApplyTo(&sh)
		s.shapes[g.shapeID] = sh
	}
	s.mu.Unlock()
	s.emitter.Emit(models.Frame{Kind: models.EventShapeUpdate, Data: models.ShapeUpdate{ID: g.shapeID, Patch: patch}})
}

// EndGesture commits the whole interaction as one command whose inverse
// restores the gesture-start geometry.
func (s *State) EndGesture() {
	s.mu.Lock()
	g := s.gesture
	s.gesture = nil
	if g == nil {
		s.mu.Unlock()
		return
	}
	final, ok := s.shapes[g.shapeID]
	s.mu.Unlock()
	if !ok {
		return
	}

	patch := diffPatch(g.start, final)
	if patch.IsEmpty() {
		return
	}
	inverse := inversePatch(g.start, patch)

	cmd := s.patchCommand(g.shapeID, patch, inverse)
	// Local state and the live relay already reflect the final geometry;
	// record the command without re-emitting.
	s.mu.Lock()
	s.undoStack = append(s.undoStack, cmd)
	s.redoStack = nil
	s.mu.Unlock()
}

/*** Patch helpers ***/

// inversePatch snapshots, from base, exactly the fields patch overwrites.
func inversePatch(base models.Shape, patch models.ShapePatch) models.ShapePatch {
	var inv models.ShapePatch
	if patch.X != nil {
		v := base.X
		inv.X = &v
	}
	if patch.Y != nil {
		v := base.Y
		inv.Y = &v
	}
	if patch.W != nil {
		v := base.W
		inv.W = &v
	}
	if patch.H != nil {
		v := base.H
		inv.H = &v
	}
	if patch.Color != nil {
		v := base.Color
		inv.Color = &v
	}
	if patch.StrokeWidth != nil {
		v := base.StrokeWidth
		inv.StrokeWidth = &v
	}
	if patch.Text != nil {
		v := base.Text
		inv.Text = &v
	}
	if patch.MaskShapeID != nil {
		v := base.MaskShapeID
		inv.MaskShapeID = &v
	}
	return inv
}

// diffPatch builds the patch that turns from into to, field by field.
func diffPatch(from, to models.Shape) models.ShapePatch {
	var p models.ShapePatch
	if from.X != to.X {
		v := to.X
		p.X = &v
	}
	if from.Y != to.Y {
		v := to.Y
		p.Y = &v
	}
	if from.W != to.W {
		v := to.W
		p.W = &v
	}
	if from.H != to.H {
		v := to.H
		p.H = &v
	}
	if from.Color != to.Color {
		v := to.Color
		p.Color = &v
	}
	if from.StrokeWidth != to.StrokeWidth {
		v := to.StrokeWidth
		p.StrokeWidth = &v
	}
	if from.Text != to.Text {
		v := to.Text
		p.Text = &v
	}
	if from.MaskShapeID != to.MaskShapeID {
		v := to.MaskShapeID
		p.MaskShapeID = &v
	}
	return p
}

// pathShape is the client-side twin of the server's stroke materialization.
func pathShape(stroke models.Stroke) models.Shape {
	minX, minY := stroke.Points[0].X, stroke.Points[0].Y
	maxX, maxY := minX, minY
	for _, pt := range stroke.Points[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}
	return models.Shape{
		ID:          stroke.ID,
		Type:        models.ShapePath,
		X:           minX,
		Y:           minY,
		W:           maxX - minX,
		H:           maxY - minY,
		Color:       stroke.Color,
		StrokeWidth: stroke.Width,
		Points:      stroke.Points,
	}
}

func decode(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

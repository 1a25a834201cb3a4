package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"boardsync/internal/models"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func TestCreateRoomIfAbsentIsIdempotent(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	first, err := ms.CreateRoomIfAbsent(ctx, "abcd")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ms.AddShape(ctx, "abcd", models.Shape{ID: "s1", Type: models.ShapeRect}); err != nil {
		t.Fatalf("add shape: %v", err)
	}

	second, err := ms.CreateRoomIfAbsent(ctx, "abcd")
	if err != nil {
		t.Fatalf("re-create: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("re-create must not reset createdAt")
	}
	if len(second.Shapes) != 1 {
		t.Fatalf("re-create must keep existing shapes, got %d", len(second.Shapes))
	}
}

func TestGetRoomUnknownRoom(t *testing.T) {
	ms := NewMemStore()
	if _, err := ms.GetRoom(context.Background(), "nope"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestPatchShapeMergesOnlyProvidedFields(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")
	ms.AddShape(ctx, "abcd", models.Shape{
		ID: "rect1", Type: models.ShapeRect, X: 10, Y: 20, W: 100, H: 50, Color: "#000000",
	})

	// Two participants edit different fields of the same shape; both edits
	// must survive because each patch carries only the fields it changed.
	if err := ms.PatchShape(ctx, "abcd", "rect1", models.ShapePatch{X: f(300), Y: f(40)}); err != nil {
		t.Fatalf("patch position: %v", err)
	}
	if err := ms.PatchShape(ctx, "abcd", "rect1", models.ShapePatch{Color: s("#ff0000")}); err != nil {
		t.Fatalf("patch color: %v", err)
	}

	room, err := ms.GetRoom(ctx, "abcd")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	got := room.Shapes[0]
	if got.X != 300 || got.Y != 40 {
		t.Fatalf("position patch lost: %+v", got)
	}
	if got.Color != "#ff0000" {
		t.Fatalf("color patch lost: %+v", got)
	}
	if got.W != 100 || got.H != 50 {
		t.Fatalf("untouched fields must keep prior values: %+v", got)
	}
}

func TestPatchShapeUnknownShape(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")

	err := ms.PatchShape(ctx, "abcd", "ghost", models.ShapePatch{X: f(1)})
	if !errors.Is(err, ErrShapeNotFound) {
		t.Fatalf("expected ErrShapeNotFound, got %v", err)
	}
}

func TestDeleteShape(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")
	ms.AddShape(ctx, "abcd", models.Shape{ID: "s1", Type: models.ShapeNote})

	if err := ms.DeleteShape(ctx, "abcd", "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ms.DeleteShape(ctx, "abcd", "s1"); !errors.Is(err, ErrShapeNotFound) {
		t.Fatalf("double delete should report ErrShapeNotFound, got %v", err)
	}
}

func TestReplaceShapes(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")
	ms.AddShape(ctx, "abcd", models.Shape{ID: "s1", Type: models.ShapeRect})
	ms.AddShape(ctx, "abcd", models.Shape{ID: "s2", Type: models.ShapeNote})

	if err := ms.ReplaceShapes(ctx, "abcd", []models.Shape{{ID: "s3", Type: models.ShapeEllipse}}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	room, _ := ms.GetRoom(ctx, "abcd")
	if len(room.Shapes) != 1 || room.Shapes[0].ID != "s3" {
		t.Fatalf("replace must swap the whole collection: %+v", room.Shapes)
	}

	if err := ms.ReplaceShapes(ctx, "nope", nil); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestAppendAndRemoveStroke(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")

	stroke := models.Stroke{ID: "st1", Author: "alice", Points: []models.Point{{X: 1, Y: 2}}}
	if err := ms.AppendStroke(ctx, "abcd", stroke); err != nil {
		t.Fatalf("append: %v", err)
	}

	removed, err := ms.RemoveStroke(ctx, "abcd", "st1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.ID != "st1" || removed.Author != "alice" {
		t.Fatalf("unexpected removed stroke: %+v", removed)
	}

	if _, err := ms.RemoveStroke(ctx, "abcd", "st1"); !errors.Is(err, ErrStrokeNotFound) {
		t.Fatalf("expected ErrStrokeNotFound, got %v", err)
	}
}

func TestRemoveLatestStrokePrefersAuthor(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")
	ms.AppendStroke(ctx, "abcd", models.Stroke{ID: "a1", Author: "alice", Points: []models.Point{{}}})
	ms.AppendStroke(ctx, "abcd", models.Stroke{ID: "b1", Author: "bob", Points: []models.Point{{}}})
	ms.AppendStroke(ctx, "abcd", models.Stroke{ID: "a2", Author: "alice", Points: []models.Point{{}}})

	// Alice undoes: her latest stroke goes, not bob's more recent one.
	removed, err := ms.RemoveLatestStroke(ctx, "abcd", "alice")
	if err != nil {
		t.Fatalf("remove latest: %v", err)
	}
	if removed.ID != "a2" {
		t.Fatalf("expected alice's latest a2, got %s", removed.ID)
	}

	// No strokes by carol remain, so the latest of any author goes.
	removed, err = ms.RemoveLatestStroke(ctx, "abcd", "carol")
	if err != nil {
		t.Fatalf("remove latest fallback: %v", err)
	}
	if removed.ID != "b1" {
		t.Fatalf("expected latest overall b1, got %s", removed.ID)
	}
}

func TestRemoveLatestStrokeEmptyLog(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")

	if _, err := ms.RemoveLatestStroke(ctx, "abcd", "alice"); !errors.Is(err, ErrStrokeNotFound) {
		t.Fatalf("expected ErrStrokeNotFound, got %v", err)
	}
}

func TestClearAllEmptiesShapesAndStrokes(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")
	ms.AddShape(ctx, "abcd", models.Shape{ID: "s1", Type: models.ShapeRect})
	ms.AppendStroke(ctx, "abcd", models.Stroke{ID: "st1", Points: []models.Point{{}}})

	if err := ms.ClearAll(ctx, "abcd"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	room, _ := ms.GetRoom(ctx, "abcd")
	if len(room.Shapes) != 0 {
		t.Fatalf("clear must empty the shape collection: %+v", room.Shapes)
	}
	if len(room.DrawingData) != 1 || room.DrawingData[0].Type != "clear" {
		t.Fatalf("clear must leave only a clear marker: %+v", room.DrawingData)
	}
	if len(room.Strokes()) != 0 {
		t.Fatal("the marker must not appear in stroke replays")
	}
}

func TestListInactiveRooms(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ms.SetClock(func() time.Time { return base })
	ms.CreateRoomIfAbsent(ctx, "old1")

	ms.SetClock(func() time.Time { return base.Add(48 * time.Hour) })
	ms.CreateRoomIfAbsent(ctx, "live")

	ids, err := ms.ListInactiveRooms(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old1" {
		t.Fatalf("expected [old1], got %v", ids)
	}

	if err := ms.DeleteRoom(ctx, "old1"); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	if _, err := ms.GetRoom(ctx, "old1"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("room should be gone, got %v", err)
	}
}

func TestActivityTouchedOnMutation(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ms.SetClock(func() time.Time { return base })
	ms.CreateRoomIfAbsent(ctx, "abcd")
	ms.AddShape(ctx, "abcd", models.Shape{ID: "s1", Type: models.ShapeRect})

	later := base.Add(time.Hour)
	ms.SetClock(func() time.Time { return later })
	ms.PatchShape(ctx, "abcd", "s1", models.ShapePatch{X: f(5)})

	room, _ := ms.GetRoom(ctx, "abcd")
	if !room.LastActivity.Equal(later) {
		t.Fatalf("mutation must bump lastActivity, got %v", room.LastActivity)
	}
}

func TestGetRoomReturnsCopies(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	ms.CreateRoomIfAbsent(ctx, "abcd")
	ms.AddShape(ctx, "abcd", models.Shape{ID: "s1", Type: models.ShapePath, Points: []models.Point{{X: 1}}})

	room, _ := ms.GetRoom(ctx, "abcd")
	room.Shapes[0].Points[0].X = 999
	room.Shapes[0].Color = "mutated"

	fresh, _ := ms.GetRoom(ctx, "abcd")
	if fresh.Shapes[0].Points[0].X == 999 || fresh.Shapes[0].Color == "mutated" {
		t.Fatal("stored state must not alias returned state")
	}
}

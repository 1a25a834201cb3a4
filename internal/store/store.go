package store

import (
	"context"
	"errors"
	"time"

	"boardsync/internal/models"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrShapeNotFound  = errors.New("shape not found")
	ErrStrokeNotFound = errors.New("stroke not found")
	// ErrStoreUnavailable wraps persistence-layer failures. The router never
	// broadcasts a mutation that returned it.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RoomStore persists one document per room: the shape collection plus an
// append-only drawing log. Every write stamps the room's lastActivity.
//
// PatchShape is a partial field merge, atomic per shape: concurrent patches
// to the same shape never interleave field by field. No atomicity is promised
// across different shapes or across shapes and the drawing log.
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	CreateRoomIfAbsent(ctx context.Context, roomID string) (*models.Room, error)

	AddShape(ctx context.Context, roomID string, shape models.Shape) error
	PatchShape(ctx context.Context, roomID, shapeID string, patch models.ShapePatch) error
	DeleteShape(ctx context.Context, roomID, shapeID string) error
	// ReplaceShapes swaps the whole shape collection (bulk import, admin
	// restore).
	ReplaceShapes(ctx context.Context, roomID string, shapes []models.Shape) error

	AppendStroke(ctx context.Context, roomID string, stroke models.Stroke) error
	// RemoveStroke removes the log entry with the given id and returns it.
	RemoveStroke(ctx context.Context, roomID, strokeID string) (models.Stroke, error)
	// RemoveLatestStroke removes the most recent entry authored by author,
	// falling back to the most recent entry of any author, and returns it.
	RemoveLatestStroke(ctx context.Context, roomID, author string) (models.Stroke, error)

	// ClearAll empties the shape collection and the stroke log, leaving a
	// single "clear" marker in the drawing log.
	ClearAll(ctx context.Context, roomID string) error

	// ListInactiveRooms returns ids of rooms whose lastActivity is before
	// cutoff (consumed by the cleanup sweep).
	ListInactiveRooms(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

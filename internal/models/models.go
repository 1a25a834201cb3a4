package models

import "time"

// EventKind enumerates every mutation and relay event the sync engine accepts
// or emits. Dispatch in the router is an exhaustive switch over these
// constants; adding a kind means adding a case there.
type EventKind string

const (
	EventJoin           EventKind = "join"
	EventPresenceUpdate EventKind = "presence:update"
	EventActivityUpdate EventKind = "activity:update"
	EventCameraUpdate   EventKind = "camera:update"
	EventCursorUpdate   EventKind = "cursor:update"
	EventDrawStart      EventKind = "draw:start"
	EventDrawMove       EventKind = "draw:move"
	EventDrawEnd        EventKind = "draw:end"
	EventShapeAdd       EventKind = "shape:add"
	EventShapeUpdate    EventKind = "shape:update"
	EventShapeDelete    EventKind = "shape:delete"
	EventClearCanvas    EventKind = "canvas:clear"
	EventDrawingUndo    EventKind = "drawing:undo"

	// Server-emitted kinds.
	EventSnapshot     EventKind = "room:snapshot"
	EventParticipants EventKind = "room:participants"
	EventStrokeReplay EventKind = "stroke:replay"
	EventShapeAdded   EventKind = "shape:added"
	EventError        EventKind = "error"
)

// Frame is the wire envelope for every event in both directions.
type Frame struct {
	Kind EventKind   `json:"kind"`
	Data interface{} `json:"data,omitempty"`
}

type ShapeType string

const (
	ShapeRect    ShapeType = "rect"
	ShapeEllipse ShapeType = "ellipse"
	ShapeNote    ShapeType = "note"
	ShapePath    ShapeType = "path"
	ShapeText    ShapeType = "text"
	ShapeLine    ShapeType = "line"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is a persistent, independently addressable drawn object. A shape of
// type "path" carries Points and is the materialized form of a completed
// freehand stroke.
type Shape struct {
	ID          string    `json:"_id" bson:"_id"`
	Type        ShapeType `json:"type" bson:"type"`
	X           float64   `json:"x" bson:"x"`
	Y           float64   `json:"y" bson:"y"`
	W           float64   `json:"w" bson:"w"`
	H           float64   `json:"h" bson:"h"`
	Color       string    `json:"color" bson:"color"`
	StrokeWidth float64   `json:"strokeWidth" bson:"strokeWidth"`
	Text        string    `json:"text,omitempty" bson:"text,omitempty"`
	MaskShapeID string    `json:"maskShapeId,omitempty" bson:"maskShapeId,omitempty"`
	Points      []Point   `json:"points,omitempty" bson:"points,omitempty"`
}

// ShapePatch is a partial-merge update: only non-nil fields overwrite the
// stored shape. Absent fields keep their prior values.
type ShapePatch struct {
	X           *float64 `json:"x,omitempty" bson:"x,omitempty"`
	Y           *float64 `json:"y,omitempty" bson:"y,omitempty"`
	W           *float64 `json:"w,omitempty" bson:"w,omitempty"`
	H           *float64 `json:"h,omitempty" bson:"h,omitempty"`
	Color       *string  `json:"color,omitempty" bson:"color,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty" bson:"strokeWidth,omitempty"`
	Text        *string  `json:"text,omitempty" bson:"text,omitempty"`
	MaskShapeID *string  `json:"maskShapeId,omitempty" bson:"maskShapeId,omitempty"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p ShapePatch) IsEmpty() bool {
	return p.X == nil && p.Y == nil && p.W == nil && p.H == nil &&
		p.Color == nil && p.StrokeWidth == nil && p.Text == nil && p.MaskShapeID == nil
}

// ApplyTo merges the patch into s, field by field.
func (p ShapePatch) ApplyTo(s *Shape) {
	if p.X != nil {
		s.X = *p.X
	}
	if p.Y != nil {
		s.Y = *p.Y
	}
	if p.W != nil {
		s.W = *p.W
	}
	if p.H != nil {
		s.H = *p.H
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.StrokeWidth != nil {
		s.StrokeWidth = *p.StrokeWidth
	}
	if p.Text != nil {
		s.Text = *p.Text
	}
	if p.MaskShapeID != nil {
		s.MaskShapeID = *p.MaskShapeID
	}
}

// Stroke is one completed freehand gesture. Entries in the stroke log are
// never mutated; they are only removed by undo or a canvas clear.
type Stroke struct {
	ID        string    `json:"id" bson:"id"`
	Points    []Point   `json:"points" bson:"points"`
	Color     string    `json:"color" bson:"color"`
	Width     float64   `json:"width" bson:"width"`
	Author    string    `json:"author" bson:"author"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// StrokeFragment is the transient draw-start/draw-move relay payload. Never
// persisted.
type StrokeFragment struct {
	StrokeID string  `json:"strokeId"`
	Point    Point   `json:"point"`
	Color    string  `json:"color,omitempty"`
	Width    float64 `json:"width,omitempty"`
}

// DrawingEntry is one element of a room's append-only drawing log as
// persisted: a stroke or a clear marker.
type DrawingEntry struct {
	Type      string    `json:"type" bson:"type"` // "stroke" | "clear"
	Data      *Stroke   `json:"data,omitempty" bson:"data,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Room is the persisted document for one whiteboard session.
type Room struct {
	RoomID       string         `json:"roomId" bson:"_id"`
	CreatedAt    time.Time      `json:"createdAt" bson:"createdAt"`
	LastActivity time.Time      `json:"lastActivity" bson:"lastActivity"`
	Shapes       []Shape        `json:"shapes" bson:"shapes"`
	DrawingData  []DrawingEntry `json:"drawingData" bson:"drawingData"`
}

// Strokes returns the stroke entries of the drawing log in order.
func (r *Room) Strokes() []Stroke {
	out := make([]Stroke, 0, len(r.DrawingData))
	for _, e := range r.DrawingData {
		if e.Type == "stroke" && e.Data != nil {
			out = append(out, *e.Data)
		}
	}
	return out
}

// Presence is a participant's human-facing identity in a room.
type Presence struct {
	SessionID  string    `json:"sessionId"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Idle       bool      `json:"idle"`
	LastActive time.Time `json:"lastActive"`
}

// PresencePatch partially updates a Presence record.
type PresencePatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
	Idle  *bool   `json:"idle,omitempty"`
}

// Activity is a transient "is doing X" signal; consumers apply a short TTL
// themselves.
type Activity struct {
	SessionID string    `json:"sessionId"`
	Drawing   bool      `json:"drawing"`
	Typing    bool      `json:"typing"`
	Timestamp time.Time `json:"timestamp"`
}

type ActivityPatch struct {
	Drawing *bool `json:"drawing,omitempty"`
	Typing  *bool `json:"typing,omitempty"`
}

// Camera is a participant's pan/zoom state, writable only by its owner.
type Camera struct {
	SessionID string  `json:"sessionId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Scale     float64 `json:"scale"`
}

type CameraPatch struct {
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Scale *float64 `json:"scale,omitempty"`
}

// Cursor is a participant's live pointer position.
type Cursor struct {
	SessionID string  `json:"sessionId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

/*** Event payloads ***/

type JoinRequest struct {
	RoomID string `json:"roomId"`
	Token  string `json:"token,omitempty"`
}

// Snapshot is the unicast payload a joiner receives: the full shape list, the
// full stroke replay, and the room's ephemeral tables (presence, activity,
// cameras, cursors) so the joiner renders other participants immediately
// instead of waiting for their next updates.
type Snapshot struct {
	RoomID       string              `json:"roomId"`
	Shapes       []Shape             `json:"shapes"`
	Strokes      []Stroke            `json:"strokes"`
	Presence     map[string]Presence `json:"presence"`
	Activity     map[string]Activity `json:"activity"`
	Cameras      map[string]Camera   `json:"cameras"`
	Cursors      map[string]Cursor   `json:"cursors"`
	Participants int                 `json:"participants"`
}

type ParticipantsUpdate struct {
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

type ShapeUpdate struct {
	ID    string     `json:"id"`
	Patch ShapePatch `json:"patch"`
}

type ShapeDelete struct {
	ID string `json:"id"`
}

type UndoRequest struct {
	StrokeID string `json:"strokeId,omitempty"`
}

// StrokeReplay is broadcast after a server-side undo: the full remaining
// stroke log. Receivers replace their local log wholesale.
type StrokeReplay struct {
	RoomID  string   `json:"roomId"`
	Strokes []Stroke `json:"strokes"`
}

type ErrorPayload struct {
	Code    string `json:"code"` // "validation_error", "not_found", "store_unavailable"
	Message string `json:"message"`
}

// RoomDescriptor is the response of the create-or-fetch room HTTP call.
type RoomDescriptor struct {
	RoomID    string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	Token     string    `json:"token,omitempty"`
}

// RoomInfo is the response of the room lookup HTTP call.
type RoomInfo struct {
	RoomID       string    `json:"roomId"`
	CreatedAt    time.Time `json:"createdAt"`
	Participants int       `json:"participants"`
}

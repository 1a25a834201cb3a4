package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"boardsync/internal/directory"
	"boardsync/internal/metrics"
	"boardsync/internal/models"
	"boardsync/internal/registry"
	"boardsync/internal/session"
	"boardsync/internal/store"
	"boardsync/internal/utils"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Handlers is the mutation router: it validates each inbound event, applies
// it against the durable store and the ephemeral registry, and decides the
// outbound broadcast shape. All collaborators are passed in; nothing is
// looked up through globals.
type Handlers struct {
	log       *zap.SugaredLogger
	hub       *session.Hub
	reg       *registry.Registry
	store     store.RoomStore
	dir       *directory.Directory // optional
	jwtSecret []byte
}

func NewHandlers(log *zap.SugaredLogger, hub *session.Hub, reg *registry.Registry, st store.RoomStore, dir *directory.Directory, jwtSecret []byte) *Handlers {
	return &Handlers{log: log, hub: hub, reg: reg, store: st, dir: dir, jwtSecret: jwtSecret}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) Ready(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ready"))
}

// JoinRoomHTTP creates-or-fetches a room by code and returns its descriptor
// plus a signed access token.
func (h *Handlers) JoinRoomHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	roomID, ok := utils.NormalizeRoomCode(req.RoomID)
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "room code must be 4-8 alphanumeric characters")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	room, err := h.store.CreateRoomIfAbsent(ctx, roomID)
	if err != nil {
		h.log.Errorw("create room failed", "roomId", roomID, "error", err)
		utils.JSONError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	desc := models.RoomDescriptor{RoomID: room.RoomID, CreatedAt: room.CreatedAt}
	if token, err := utils.GenerateRoomToken(roomID, h.jwtSecret); err == nil {
		desc.Token = token
	}
	if h.dir != nil {
		if err := h.dir.PublishRoom(ctx, desc); err != nil {
			h.log.Warnw("directory publish failed", "roomId", roomID, "error", err)
		}
	}
	utils.JSON(w, http.StatusOK, desc)
}

// RoomInfoHTTP reports a room's descriptor and live participant count. The
// directory answers when available; otherwise the durable store does.
func (h *Handlers) RoomInfoHTTP(w http.ResponseWriter, r *http.Request) {
	roomID, ok := utils.NormalizeRoomCode(chi.URLParam(r, "roomID"))
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "room code must be 4-8 alphanumeric characters")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.dir != nil {
		if desc, participants, err := h.dir.GetRoom(ctx, roomID); err == nil && desc != nil {
			utils.JSON(w, http.StatusOK, models.RoomInfo{
				RoomID:       desc.RoomID,
				CreatedAt:    desc.CreatedAt,
				Participants: participants,
			})
			return
		}
	}

	room, err := h.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrRoomNotFound) {
		utils.JSONError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	utils.JSON(w, http.StatusOK, models.RoomInfo{
		RoomID:       room.RoomID,
		CreatedAt:    room.CreatedAt,
		Participants: h.hub.ParticipantCount(roomID),
	})
}

// BoardWS upgrades the connection and runs the event loop until the client
// disconnects.
func (h *Handlers) BoardWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := session.NewClient(conn)
	metrics.ClientConnected()
	defer metrics.ClientDisconnected()
	defer h.disconnect(client)

	for {
		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.HandleFrame(client, frame)
	}
}

// disconnect tears down a client's room membership and ephemeral state.
func (h *Handlers) disconnect(client *session.Client) {
	room, ok := h.hub.LeaveRoom(client)
	if !ok || room == nil {
		return
	}
	h.reg.Remove(room.ID, client.ID)
	h.announceParticipants(room)
}

func (h *Handlers) announceParticipants(room *session.Room) {
	count := room.ClientCount()
	room.BroadcastAll(models.Frame{
		Kind: models.EventParticipants,
		Data: models.ParticipantsUpdate{RoomID: room.ID, Count: count},
	})
	if h.dir != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.dir.SetParticipants(ctx, room.ID, count); err != nil {
			h.log.Debugw("directory participant update failed", "roomId", room.ID, "error", err)
		}
	}
}

// HandleFrame routes one inbound event. Exported so tests can drive the
// router without a socket.
func (h *Handlers) HandleFrame(client *session.Client, frame models.Frame) {
	metrics.EventReceived(string(frame.Kind))

	if frame.Kind == models.EventJoin {
		h.handleJoin(client, frame)
		return
	}

	// Every other event requires Joined state; events arriving while
	// unjoined are dropped.
	room, ok := h.hub.RoomOf(client)
	if !ok {
		metrics.EventFailed(string(frame.Kind), "unjoined")
		h.log.Debugw("event before join dropped", "kind", frame.Kind, "session", client.ID)
		return
	}

	switch frame.Kind {
	case models.EventPresenceUpdate:
		var patch models.PresencePatch
		if err := decode(frame.Data, &patch); err != nil {
			h.dropInvalid(frame.Kind, err)
			return
		}
		rec := h.reg.UpsertPresence(room.ID, client.ID, patch)
		room.BroadcastAll(models.Frame{Kind: models.EventPresenceUpdate, Data: rec})

	case models.EventActivityUpdate:
		var patch models.ActivityPatch
		if err := decode(frame.Data, &patch); err != nil {
			h.dropInvalid(frame.Kind, err)
			return
		}
		rec := h.reg.UpsertActivity(room.ID, client.ID, patch)
		room.BroadcastAll(models.Frame{Kind: models.EventActivityUpdate, Data: rec})

	case models.EventCameraUpdate:
		var patch models.CameraPatch
		if err := decode(frame.Data, &patch); err != nil {
			h.dropInvalid(frame.Kind, err)
			return
		}
		rec := h.reg.UpsertCamera(room.ID, client.ID, patch)
		room.BroadcastAll(models.Frame{Kind: models.EventCameraUpdate, Data: rec})

	case models.EventCursorUpdate:
		var point models.Point
		if err := decode(frame.Data, &point); err != nil {
			h.dropInvalid(frame.Kind, err)
			return
		}
		rec := h.reg.UpsertCursor(room.ID, client.ID, point)
		room.Broadcast(client, models.Frame{Kind: models.EventCursorUpdate, Data: rec})

	case models.EventDrawStart, models.EventDrawMove:
		// Transient relay only: never persisted, never echoed back to the
		// sender, which already rendered its own stroke locally.
		var frag models.StrokeFragment
		if err := decode(frame.Data, &frag); err != nil {
			h.dropInvalid(frame.Kind, err)
			return
		}
		room.Broadcast(client, models.Frame{Kind: frame.Kind, Data: frag})

	case models.EventDrawEnd:
		h.handleDrawEnd(client, room, frame)

	case models.EventShapeAdd:
		h.handleShapeAdd(client, room, frame)

	case models.EventShapeUpdate:
		h.handleShapeUpdate(client, room, frame)

	case models.EventShapeDelete:
		h.handleShapeDelete(client, room, frame)

	case models.EventClearCanvas:
		if err := h.store.ClearAll(context.Background(), room.ID); err != nil {
			h.failMutation(client, frame.Kind, err)
			return
		}
		h.touchDirectory(room.ID)
		room.BroadcastAll(models.Frame{Kind: models.EventClearCanvas})

	case models.EventDrawingUndo:
		h.handleUndo(client, room, frame)

	case models.EventSnapshot, models.EventParticipants, models.EventStrokeReplay,
		models.EventShapeAdded, models.EventError:
		// Server-emitted kinds are not accepted from clients.
		metrics.EventFailed(string(frame.Kind), "validation_error")

	default:
		client.Send(errFrame("validation_error", "unknown event kind"))
	}
}

func (h *Handlers) handleJoin(client *session.Client, frame models.Frame) {
	var req models.JoinRequest
	if err := decode(frame.Data, &req); err != nil {
		h.dropInvalid(frame.Kind, err)
		return
	}
	roomID, ok := utils.NormalizeRoomCode(req.RoomID)
	if !ok {
		h.dropInvalid(frame.Kind, errors.New("bad room code"))
		return
	}
	if req.Token != "" {
		claims, err := utils.ValidateRoomToken(req.Token, h.jwtSecret)
		if err != nil || claims.RoomID != roomID {
			metrics.EventFailed(string(frame.Kind), "validation_error")
			h.log.Debugw("join with invalid token dropped", "roomId", roomID)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Persist before joining, so the snapshot always reads an existing room.
	roomDoc, err := h.store.CreateRoomIfAbsent(ctx, roomID)
	if err != nil {
		h.failMutation(client, frame.Kind, err)
		return
	}

	joined, left := h.hub.JoinRoom(client, roomID)
	if left != nil {
		h.reg.Remove(left.ID, client.ID)
		h.announceParticipants(left)
	}

	client.Send(models.Frame{Kind: models.EventSnapshot, Data: models.Snapshot{
		RoomID:       roomID,
		Shapes:       roomDoc.Shapes,
		Strokes:      roomDoc.Strokes(),
		Presence:     h.reg.PresenceSnapshot(roomID),
		Activity:     h.reg.ActivitySnapshot(roomID),
		Cameras:      h.reg.CameraSnapshot(roomID),
		Cursors:      h.reg.CursorSnapshot(roomID),
		Participants: joined.ClientCount(),
	}})
	h.announceParticipants(joined)
	h.touchDirectory(roomID)
}

func (h *Handlers) handleDrawEnd(client *session.Client, room *session.Room, frame models.Frame) {
	var stroke models.Stroke
	if err := decode(frame.Data, &stroke); err != nil || len(stroke.Points) == 0 {
		h.dropInvalid(frame.Kind, errors.New("stroke without points"))
		return
	}
	if stroke.ID == "" {
		stroke.ID = uuid.New().String()
	}
	if stroke.Author == "" {
		stroke.Author = client.ID
	}
	stroke.Timestamp = time.Now().UTC()

	ctx := context.Background()
	// Dual representation: the completed stroke goes into the log and is
	// materialized as a path shape with the same id, so late joiners get it
	// via the ordinary shape snapshot. Persist both before broadcasting.
	if err := h.store.AppendStroke(ctx, room.ID, stroke); err != nil {
		h.failMutation(client, frame.Kind, err)
		return
	}
	shape := materializeStroke(stroke)
	if err := h.store.AddShape(ctx, room.ID, shape); err != nil {
		h.failMutation(client, frame.Kind, err)
		return
	}
	h.touchDirectory(room.ID)

	room.Broadcast(client, models.Frame{Kind: models.EventDrawEnd, Data: stroke})
	room.BroadcastAll(models.Frame{Kind: models.EventShapeAdded, Data: shape})
}

func (h *Handlers) handleShapeAdd(client *session.Client, room *session.Room, frame models.Frame) {
	var shape models.Shape
	if err := decode(frame.Data, &shape); err != nil || shape.Type == "" {
		h.dropInvalid(frame.Kind, errors.New("shape without type"))
		return
	}
	if shape.ID == "" {
		shape.ID = uuid.New().String()
	}
	if err := h.store.AddShape(context.Background(), room.ID, shape); err != nil {
		h.failMutation(client, frame.Kind, err)
		return
	}
	h.touchDirectory(room.ID)
	room.BroadcastAll(models.Frame{Kind: models.EventShapeAdd, Data: shape})
}

func (h *Handlers) handleShapeUpdate(client *session.Client, room *session.Room, frame models.Frame) {
	var upd models.ShapeUpdate
	if err := decode(frame.Data, &upd); err != nil || upd.ID == "" || upd.Patch.IsEmpty() {
		h.dropInvalid(frame.Kind, errors.New("update without id or patch"))
		return
	}
	if err := h.store.PatchShape(context.Background(), room.ID, upd.ID, upd.Patch); err != nil {
		h.failMutation(client, frame.Kind, err)
		return
	}
	h.touchDirectory(room.ID)
	room.BroadcastAll(models.Frame{Kind: models.EventShapeUpdate, Data: upd})
}

func (h *Handlers) handleShapeDelete(client *session.Client, room *session.Room, frame models.Frame) {
	var del models.ShapeDelete
	if err := decode(frame.Data, &del); err != nil || del.ID == "" {
		h.dropInvalid(frame.Kind, errors.New("delete without id"))
		return
	}
	if err := h.store.DeleteShape(context.Background(), room.ID, del.ID); err != nil {
		h.failMutation(client, frame.Kind, err)
		return
	}
	h.touchDirectory(room.ID)
	room.BroadcastAll(models.Frame{Kind: models.EventShapeDelete, Data: del})
}

// handleUndo removes a stroke-log entry (by id when given, else the
// requester's most recent, falling back to the most recent of any author)
// together with its materialized shape, then re-sends the full remaining
// stroke log so every participant converges on the same replay.
func (h *Handlers) handleUndo(client *session.Client, room *session.Room, frame models.Frame) {
	var req models.UndoRequest
	if err := decode(frame.Data, &req); err != nil {
		h.dropInvalid(frame.Kind, err)
		return
	}

	ctx := context.Background()
	var removed models.Stroke
	var err error
	if req.StrokeID != "" {
		removed, err = h.store.RemoveStroke(ctx, room.ID, req.StrokeID)
	} else {
		removed, err = h.store.RemoveLatestStroke(ctx, room.ID, client.ID)
	}
	if errors.Is(err, store.ErrStrokeNotFound) {
		// Nothing to undo.
		return
	}
	if err != nil {
		h.failMutation(client, frame.Kind, err)
		return
	}

	// Keep the shape collection consistent with the log.
	if err := h.store.DeleteShape(ctx, room.ID, removed.ID); err != nil && !errors.Is(err, store.ErrShapeNotFound) {
		h.failMutation(client, frame.Kind, err)
		return
	}

	roomDoc, err := h.store.GetRoom(ctx, room.ID)
	if err != nil {
		h.failMutation(client, frame.Kind, err)
		return
	}
	h.touchDirectory(room.ID)

	room.BroadcastAll(models.Frame{Kind: models.EventShapeDelete, Data: models.ShapeDelete{ID: removed.ID}})
	room.BroadcastAll(models.Frame{Kind: models.EventStrokeReplay, Data: models.StrokeReplay{
		RoomID:  room.ID,
		Strokes: roomDoc.Strokes(),
	}})
}

// failMutation surfaces a store or lookup failure to the originating
// connection only. The mutation was aborted before any broadcast.
func (h *Handlers) failMutation(client *session.Client, kind models.EventKind, err error) {
	code := "store_unavailable"
	switch {
	case errors.Is(err, store.ErrShapeNotFound), errors.Is(err, store.ErrStrokeNotFound), errors.Is(err, store.ErrRoomNotFound):
		code = "not_found"
	}
	metrics.EventFailed(string(kind), code)
	h.log.Warnw("mutation failed", "kind", kind, "code", code, "error", err)
	client.Send(errFrame(code, err.Error()))
}

func (h *Handlers) dropInvalid(kind models.EventKind, err error) {
	metrics.EventFailed(string(kind), "validation_error")
	h.log.Debugw("invalid event dropped", "kind", kind, "error", err)
}

func (h *Handlers) touchDirectory(roomID string) {
	if h.dir == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.dir.Touch(ctx, roomID); err != nil {
		h.log.Debugw("directory touch failed", "roomId", roomID, "error", err)
	}
}

// materializeStroke builds the path shape twin of a completed stroke: same
// id, bounding-box geometry, points carried verbatim.
func materializeStroke(stroke models.Stroke) models.Shape {
	minX, minY := stroke.Points[0].X, stroke.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range stroke.Points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
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

func errFrame(code, msg string) models.Frame {
	return models.Frame{Kind: models.EventError, Data: models.ErrorPayload{Code: code, Message: msg}}
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"boardsync/internal/models"
	"boardsync/internal/store"
)

// RoomRepo is the Mongo-backed RoomStore: one document per room. Per-shape
// partial merges are a single UpdateOne with positional $set, so concurrent
// patches to the same shape never interleave field by field.
type RoomRepo struct {
	col *mongo.Collection
	now func() time.Time
}

func NewRoomRepo(c *Client, dbName string) (*RoomRepo, error) {
	db, err := c.DB(dbName)
	if err != nil {
		return nil, err
	}
	col := db.Collection("rooms")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "lastActivity", Value: 1}},
	})
	return &RoomRepo{col: col, now: time.Now}, nil
}

func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := r.col.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrRoomNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &room, nil
}

func (r *RoomRepo) CreateRoomIfAbsent(ctx context.Context, roomID string) (*models.Room, error) {
	now := r.now().UTC()
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$setOnInsert": bson.M{
			"createdAt":    now,
			"lastActivity": now,
			"shapes":       []models.Shape{},
			"drawingData":  []models.DrawingEntry{},
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, unavailable(err)
	}
	return r.GetRoom(ctx, roomID)
}

func (r *RoomRepo) AddShape(ctx context.Context, roomID string, shape models.Shape) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{
			"$push": bson.M{"shapes": shape},
			"$set":  bson.M{"lastActivity": r.now().UTC()},
		},
	)
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepo) PatchShape(ctx context.Context, roomID, shapeID string, patch models.ShapePatch) error {
	set := bson.M{"lastActivity": r.now().UTC()}
	addPatchFields(set, patch)
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": roomID, "shapes._id": shapeID},
		bson.M{"$set": set},
	)
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetRoom(ctx, roomID); err != nil {
			return err
		}
		return store.ErrShapeNotFound
	}
	return nil
}

func addPatchFields(set bson.M, p models.ShapePatch) {
	if p.X != nil {
		set["shapes.$.x"] = *p.X
	}
	if p.Y != nil {
		set["shapes.$.y"] = *p.Y
	}
	if p.W != nil {
		set["shapes.$.w"] = *p.W
	}
	if p.H != nil {
		set["shapes.$.h"] = *p.H
	}
	if p.Color != nil {
		set["shapes.$.color"] = *p.Color
	}
	if p.StrokeWidth != nil {
		set["shapes.$.strokeWidth"] = *p.StrokeWidth
	}
	if p.Text != nil {
		set["shapes.$.text"] = *p.Text
	}
	if p.MaskShapeID != nil {
		set["shapes.$.maskShapeId"] = *p.MaskShapeID
	}
}

func (r *RoomRepo) DeleteShape(ctx context.Context, roomID, shapeID string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{
			"$pull": bson.M{"shapes": bson.M{"_id": shapeID}},
			"$set":  bson.M{"lastActivity": r.now().UTC()},
		},
	)
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrRoomNotFound
	}
	if res.ModifiedCount == 0 {
		return store.ErrShapeNotFound
	}
	return nil
}

func (r *RoomRepo) ReplaceShapes(ctx context.Context, roomID string, shapes []models.Shape) error {
	if shapes == nil {
		shapes = []models.Shape{}
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{"shapes": shapes, "lastActivity": r.now().UTC()}},
	)
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepo) AppendStroke(ctx context.Context, roomID string, stroke models.Stroke) error {
	now := r.now().UTC()
	entry := models.DrawingEntry{Type: "stroke", Data: &stroke, Timestamp: now}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{
			"$push": bson.M{"drawingData": entry},
			"$set":  bson.M{"lastActivity": now},
		},
	)
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepo) RemoveStroke(ctx context.Context, roomID, strokeID string) (models.Stroke, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return models.Stroke{}, err
	}
	var removed *models.Stroke
	for _, e := range room.DrawingData {
		if e.Type == "stroke" && e.Data != nil && e.Data.ID == strokeID {
			removed = e.Data
			break
		}
	}
	if removed == nil {
		return models.Stroke{}, store.ErrStrokeNotFound
	}
	if err := r.pullStroke(ctx, roomID, strokeID); err != nil {
		return models.Stroke{}, err
	}
	return *removed, nil
}

func (r *RoomRepo) RemoveLatestStroke(ctx context.Context, roomID, author string) (models.Stroke, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return models.Stroke{}, err
	}
	var target *models.Stroke
	for i := len(room.DrawingData) - 1; i >= 0; i-- {
		e := room.DrawingData[i]
		if e.Type != "stroke" || e.Data == nil {
			continue
		}
		if e.Data.Author == author {
			target = e.Data
			break
		}
		if target == nil {
			target = e.Data // latest of any author, kept as fallback
		}
	}
	if target == nil {
		return models.Stroke{}, store.ErrStrokeNotFound
	}
	if err := r.pullStroke(ctx, roomID, target.ID); err != nil {
		return models.Stroke{}, err
	}
	return *target, nil
}

func (r *RoomRepo) pullStroke(ctx context.Context, roomID, strokeID string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{
			"$pull": bson.M{"drawingData": bson.M{"data.id": strokeID}},
			"$set":  bson.M{"lastActivity": r.now().UTC()},
		},
	)
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrRoomNotFound
	}
	if res.ModifiedCount == 0 {
		return store.ErrStrokeNotFound
	}
	return nil
}

func (r *RoomRepo) ClearAll(ctx context.Context, roomID string) error {
	now := r.now().UTC()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{
			"shapes":       []models.Shape{},
			"drawingData":  []models.DrawingEntry{{Type: "clear", Timestamp: now}},
			"lastActivity": now,
		}},
	)
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepo) ListInactiveRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"lastActivity": bson.M{"$lt": cutoff}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, unavailable(err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": roomID})
	if err != nil {
		return unavailable(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
}

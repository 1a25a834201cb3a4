package directory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"boardsync/internal/models"
)

// Directory mirrors lightweight room metadata into Redis so sibling services
// (lobby UI, ops tooling) can list live rooms without touching the durable
// store. Each room hash carries the directory TTL and is refreshed on
// activity, so abandoned rooms age out on their own.
type Directory struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Directory{rdb: rdb, ttl: ttl}
}

func roomKey(roomID string) string { return "room:" + roomID }

// PublishRoom writes the room descriptor hash and arms its TTL.
func (d *Directory) PublishRoom(ctx context.Context, desc models.RoomDescriptor) error {
	key := roomKey(desc.RoomID)
	if err := d.rdb.HSet(ctx, key, map[string]interface{}{
		"roomId":    desc.RoomID,
		"createdAt": desc.CreatedAt.UTC().Format(time.RFC3339),
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish room %s: %w", desc.RoomID, err)
	}
	return d.rdb.Expire(ctx, key, d.ttl).Err()
}

// Touch refreshes the room's TTL and last-activity stamp.
func (d *Directory) Touch(ctx context.Context, roomID string) error {
	key := roomKey(roomID)
	if err := d.rdb.HSet(ctx, key, "lastActivity", time.Now().UTC().Format(time.RFC3339)).Err(); err != nil {
		return fmt.Errorf("failed to touch room %s: %w", roomID, err)
	}
	return d.rdb.Expire(ctx, key, d.ttl).Err()
}

// SetParticipants records the live connection count for the room.
func (d *Directory) SetParticipants(ctx context.Context, roomID string, count int) error {
	return d.rdb.HSet(ctx, roomKey(roomID), "participants", count).Err()
}

// GetRoom fetches a room descriptor, if present.
func (d *Directory) GetRoom(ctx context.Context, roomID string) (*models.RoomDescriptor, int, error) {
	result, err := d.rdb.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	if len(result) == 0 {
		return nil, 0, nil
	}
	desc := &models.RoomDescriptor{RoomID: result["roomId"]}
	if t, err := time.Parse(time.RFC3339, result["createdAt"]); err == nil {
		desc.CreatedAt = t
	}
	participants, _ := strconv.Atoi(result["participants"])
	return desc, participants, nil
}

// Delete removes the room's directory entry.
func (d *Directory) Delete(ctx context.Context, roomID string) error {
	return d.rdb.Del(ctx, roomKey(roomID)).Err()
}

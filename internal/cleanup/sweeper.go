package cleanup

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"boardsync/internal/directory"
	"boardsync/internal/store"
)

// Sweeper deletes rooms that have been inactive past the TTL. Ephemeral state
// is not its concern: the registry drops entries eagerly on disconnect.
type Sweeper struct {
	log  *zap.SugaredLogger
	st   store.RoomStore
	dir  *directory.Directory // optional
	ttl  time.Duration
	cron *cron.Cron
}

func New(log *zap.SugaredLogger, st store.RoomStore, dir *directory.Directory, ttl time.Duration) *Sweeper {
	return &Sweeper{log: log, st: st, dir: dir, ttl: ttl, cron: cron.New()}
}

// Start schedules the sweep with the given cron expression.
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep deletes every room whose last activity is older than the TTL and
// returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-s.ttl)
	ids, err := s.st.ListInactiveRooms(ctx, cutoff)
	if err != nil {
		s.log.Errorw("inactive room listing failed", "error", err)
		return 0
	}

	removed := 0
	for _, id := range ids {
		if err := s.st.DeleteRoom(ctx, id); err != nil {
			s.log.Warnw("room delete failed", "roomId", id, "error", err)
			continue
		}
		if s.dir != nil {
			_ = s.dir.Delete(ctx, id)
		}
		removed++
	}
	if removed > 0 {
		s.log.Infow("swept inactive rooms", "count", removed)
	}
	return removed
}

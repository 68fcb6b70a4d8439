package janitor

import (
	"context"
	"time"

	"zensyncgo/internal/services/rooms"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const sweepTimeout = 30 * time.Second

// Sweeper is the part of the room directory the janitor needs.
type Sweeper interface {
	DeleteStaleRooms(ctx context.Context, olderThan time.Time) ([]rooms.RoomRef, error)
}

// Run deletes, every interval, rooms older than grace that nobody has joined.
// It blocks until ctx is cancelled.
func Run(ctx context.Context, svc Sweeper, clock clockwork.Clock, interval, grace time.Duration) {
	tk := clock.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.Chan():
			sweepOnce(ctx, svc, clock.Now().Add(-grace))
		}
	}
}

func sweepOnce(ctx context.Context, svc Sweeper, cutoff time.Time) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	refs, err := svc.DeleteStaleRooms(ctx, cutoff)
	if err != nil {
		zap.L().Warn("janitor.sweep", zap.Error(err))
		return
	}
	if len(refs) == 0 {
		return
	}
	for _, ref := range refs {
		zap.L().Debug("janitor.deleted",
			zap.String("kind", ref.Kind.String()),
			zap.String("room", ref.ID))
	}
	zap.L().Info("janitor.sweep", zap.Int("deleted", len(refs)))
}

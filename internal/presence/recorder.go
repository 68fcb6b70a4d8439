// Package presence mirrors participant join/leave events of live rooms into
// Redis: a per-room member set plus an append-only stream that syncpresence
// persists to Postgres.
package presence

import (
	"context"
	"time"

	"zensyncgo/internal/redis/redis_functions"
	"zensyncgo/internal/roomstate"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stream is the Redis stream the Lua functions append to.
const Stream = "presence_stream"

const (
	defaultQueueSize = 1024
	callTimeout      = 2 * time.Second
)

// MembersKey is the Redis set holding the live participants of a room.
func MembersKey(kind roomstate.Kind, roomID string) string {
	return "room:" + kind.String() + ":" + roomID + ":members"
}

type event struct {
	fn     string
	kind   roomstate.Kind
	roomID string
	userID string
	at     int64
}

// Recorder queues presence changes and applies them from a single worker, so
// rooms never wait on Redis.
type Recorder struct {
	rdc   redis.Cmdable
	clock clockwork.Clock
	queue chan event
}

func NewRecorder(rdc redis.Cmdable, clock clockwork.Clock, queueSize int) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{rdc: rdc, clock: clock, queue: make(chan event, queueSize)}
}

func (r *Recorder) Joined(kind roomstate.Kind, roomID, userID string) {
	r.enqueue(redis_functions.PresenceJoin, kind, roomID, userID)
}

func (r *Recorder) Left(kind roomstate.Kind, roomID, userID string) {
	r.enqueue(redis_functions.PresenceLeave, kind, roomID, userID)
}

func (r *Recorder) enqueue(fn string, kind roomstate.Kind, roomID, userID string) {
	ev := event{fn: fn, kind: kind, roomID: roomID, userID: userID, at: r.clock.Now().Unix()}
	select {
	case r.queue <- ev:
	default:
		zap.L().Warn("presence.queue_full",
			zap.String("fn", fn),
			zap.String("room", roomID),
			zap.String("user", userID))
	}
}

// Run drains the queue until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			r.apply(ctx, ev)
		}
	}
}

func (r *Recorder) apply(ctx context.Context, ev event) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	n, err := r.rdc.FCall(ctx, ev.fn,
		[]string{MembersKey(ev.kind, ev.roomID), Stream},
		ev.userID, ev.kind.String(), ev.roomID, ev.at,
	).Int()
	if err != nil {
		zap.L().Warn("presence.fcall",
			zap.String("fn", ev.fn),
			zap.String("room", ev.roomID),
			zap.String("user", ev.userID),
			zap.Error(err))
		return
	}
	zap.L().Debug("presence.applied",
		zap.String("fn", ev.fn),
		zap.String("room", ev.roomID),
		zap.Int("members", n))
}

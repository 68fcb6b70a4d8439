package syncpresence

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"zensyncgo/internal/presence"
	"zensyncgo/internal/roomstate"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batchSize  = 100
	blockFor   = 2000 * time.Millisecond
	retryDelay = time.Second
)

// entry is one decoded presence stream message.
type entry struct {
	op     string
	userID string
	kind   roomstate.Kind
	roomID int64
	at     int64
}

// Run tails the presence stream and mirrors joins and leaves into
// room_participants. It returns when ctx is cancelled.
func Run(ctx context.Context, rdc redis.Cmdable, db *sql.DB) {
	lastID := "0-0"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// block up to 2 s for new entries
		res, err := rdc.XRead(ctx, &redis.XReadArgs{
			Streams: []string{presence.Stream, lastID},
			Count:   batchSize,
			Block:   blockFor,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return
			}
			zap.L().Warn("syncpresence.xread", zap.Error(err))
			sleep(ctx, retryDelay)
			continue
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			continue
		}
		msgs := res[0].Messages
		if err := persist(ctx, db, msgs); err != nil {
			// batch is retried from the same position
			zap.L().Warn("syncpresence.persist", zap.Int("entries", len(msgs)), zap.Error(err))
			sleep(ctx, retryDelay)
			continue
		}
		lastID = msgs[len(msgs)-1].ID
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func decode(m redis.XMessage) (entry, bool) {
	str := func(k string) string {
		s, _ := m.Values[k].(string)
		return s
	}
	kind, err := roomstate.ParseKind(str("kind"))
	if err != nil {
		return entry{}, false
	}
	roomID, err := strconv.ParseInt(str("room"), 10, 64)
	if err != nil {
		return entry{}, false
	}
	at, _ := strconv.ParseInt(str("at"), 10, 64)
	e := entry{op: str("op"), userID: str("user"), kind: kind, roomID: roomID, at: at}
	if e.userID == "" || (e.op != "join" && e.op != "leave") {
		return entry{}, false
	}
	return e, true
}

// persist applies one batch in a single transaction. Entries for rooms that
// only live in memory (non-numeric ids) are skipped, and joins for rooms the
// directory no longer has insert nothing.
func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const ins = `
	  INSERT INTO room_participants (room_id, user_id, joined_at)
	       SELECT id, $2, to_timestamp($3) FROM rooms WHERE id = $1 AND kind = $4
	  ON CONFLICT (room_id, user_id) DO UPDATE SET joined_at = EXCLUDED.joined_at`
	const del = `DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`

	for _, m := range msgs {
		e, ok := decode(m)
		if !ok {
			zap.L().Debug("syncpresence.skip", zap.String("id", m.ID))
			continue
		}
		switch e.op {
		case "join":
			_, err = tx.ExecContext(ctx, ins, e.roomID, e.userID, e.at, e.kind.String())
		case "leave":
			_, err = tx.ExecContext(ctx, del, e.roomID, e.userID)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

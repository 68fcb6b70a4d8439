package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"zensyncgo/internal/roomstate"

	"github.com/go-redis/redismock/v9"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestMembersKey(t *testing.T) {
	assert.Equal(t, "room:meditation:42:members", MembersKey(roomstate.Meditation, "42"))
	assert.Equal(t, "room:music:7:members", MembersKey(roomstate.Music, "7"))
}

func TestRecorder_AppliesInOrder(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.MatchExpectationsInOrder(true)
	keys := []string{"room:meditation:1:members", Stream}
	mock.ExpectFCall("presence_join", keys, "u1", "meditation", "1", epoch.Unix()).SetVal(int64(1))
	mock.ExpectFCall("presence_join", keys, "u2", "meditation", "1", epoch.Unix()).SetErr(errors.New("LOADING"))
	mock.ExpectFCall("presence_leave", keys, "u1", "meditation", "1", epoch.Unix()).SetVal(int64(0))

	rec := NewRecorder(db, clockwork.NewFakeClockAt(epoch), 8)
	rec.Joined(roomstate.Meditation, "1", "u1")
	rec.Joined(roomstate.Meditation, "1", "u2")
	rec.Left(roomstate.Meditation, "1", "u1")

	ctx := context.Background()
	for len(rec.queue) > 0 {
		rec.apply(ctx, <-rec.queue)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_RunStopsOnCancel(t *testing.T) {
	db, _ := redismock.NewClientMock()
	rec := NewRecorder(db, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, defaultQueueSize, cap(rec.queue))
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	db, _ := redismock.NewClientMock()
	rec := NewRecorder(db, clockwork.NewFakeClockAt(epoch), 1)

	rec.Joined(roomstate.Music, "9", "a")
	rec.Joined(roomstate.Music, "9", "b")

	require.Len(t, rec.queue, 1)
	ev := <-rec.queue
	assert.Equal(t, "a", ev.userID)
	assert.Equal(t, "presence_join", ev.fn)
}

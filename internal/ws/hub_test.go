package ws

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"zensyncgo/internal/roomstate"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	duration int
	err      error
	missing  bool
}

func (d *fakeDirectory) GetRoomDuration(context.Context, roomstate.Kind, string) (int, error) {
	return d.duration, d.err
}

func (d *fakeDirectory) RoomExists(context.Context, roomstate.Kind, string) (bool, error) {
	return !d.missing, d.err
}

type fakePresence struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePresence) Joined(_ roomstate.Kind, roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "join:"+roomID+":"+userID)
}

func (p *fakePresence) Left(_ roomstate.Kind, roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "leave:"+roomID+":"+userID)
}

func (p *fakePresence) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newTestHub(t *testing.T, clock clockwork.Clock, dir RoomDirectory, presence PresenceRecorder) *Hub {
	t.Helper()
	h := NewHub(HubConfig{
		Clock:        clock,
		TickInterval: time.Second,
		Directory:    dir,
		Presence:     presence,
	})
	t.Cleanup(h.Close)
	return h
}

func attach(h *Hub, kind roomstate.Kind, roomID, connID, userID string) (*Membership, *mockConn) {
	conn := &mockConn{}
	var ident *Identity
	if userID != "" {
		ident = &Identity{UserID: userID, DisplayName: userID}
	}
	return h.Attach(NewSession(connID, kind, roomID, ident, conn)), conn
}

func waitFor(t *testing.T, c *mockConn, msg string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.Contains(c.messages(), msg)
	}, 2*time.Second, 5*time.Millisecond, "waiting for %q, got %v", msg, c.messages())
}

func TestHub_AttachSendsStateAndRoster(t *testing.T) {
	presence := &fakePresence{}
	h := newTestHub(t, clockwork.NewFakeClock(), &fakeDirectory{duration: 300}, presence)

	_, alice := attach(h, roomstate.Meditation, "r1", "c1", "alice")
	assert.Equal(t, []string{
		"state:300,false,300",
		"participants:alice",
		"new_participant:alice",
	}, alice.messages())

	_, bob := attach(h, roomstate.Meditation, "r1", "c2", "bob")
	assert.Equal(t, []string{
		"state:300,false,300",
		"participants:alice,bob",
		"new_participant:bob",
	}, bob.messages())
	assert.Equal(t, []string{
		"state:300,false,300",
		"participants:alice",
		"new_participant:alice",
		"participants:alice,bob",
		"new_participant:bob",
	}, alice.messages())

	assert.Equal(t, []string{"join:r1:alice", "join:r1:bob"}, presence.list())

	rooms, sessions := h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 2, sessions)
}

func TestHub_ObserverIsNotAParticipant(t *testing.T) {
	h := newTestHub(t, clockwork.NewFakeClock(), &fakeDirectory{duration: 60}, nil)

	_, obs := attach(h, roomstate.Meditation, "r1", "c1", "")
	assert.Equal(t, []string{"state:60,false,60"}, obs.messages())

	m, c2 := attach(h, roomstate.Meditation, "r1", "c2", "")
	m.Handle("get_participants")
	// the reply goes to the requester only
	waitFor(t, c2, "participants:")
	assert.Equal(t, []string{"state:60,false,60"}, obs.messages())
}

func TestHub_CountdownRunsToCompletion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock, &fakeDirectory{duration: 3}, nil)

	m, a := attach(h, roomstate.Meditation, "r1", "c1", "")
	_, b := attach(h, roomstate.Meditation, "r1", "c2", "")

	m.Handle("play")
	waitFor(t, a, "play")
	waitFor(t, b, "play")
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	for _, want := range []string{"time:2", "time:1", "time:0"} {
		clock.Advance(time.Second)
		waitFor(t, a, want)
	}
	waitFor(t, a, roomstate.Completed)
	waitFor(t, b, roomstate.Completed)
	require.NoError(t, clock.BlockUntilContext(ctx, 0), "ticker stops on completion")

	assert.Equal(t, []string{
		"state:3,false,3", "play", "time:2", "time:1", "time:0", "completed",
	}, b.messages())

	// play after completion restarts from the full duration
	m.Handle("play")
	require.Eventually(t, func() bool { return len(a.messages()) == 8 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"time:3", "play"}, a.messages()[6:])
}

func TestHub_PlayTwiceDoesNotDoubleTick(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock, &fakeDirectory{duration: 10}, nil)

	m, a := attach(h, roomstate.Meditation, "r1", "c1", "")
	m.Handle("play")
	m.Handle("play")
	m.Handle("get_state")
	waitFor(t, a, "state:10,true,10")
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second)
	waitFor(t, a, "time:9")

	m.Handle("pause")
	m.Handle("pause")
	m.Handle("get_state")
	waitFor(t, a, "state:9,false,10")

	assert.Equal(t, []string{
		"state:10,false,10", "play", "state:10,true,10", "time:9", "pause", "state:9,false,10",
	}, a.messages())
}

func TestHub_DurationAndTimeCommands(t *testing.T) {
	h := newTestHub(t, clockwork.NewFakeClock(), &fakeDirectory{}, nil)

	m, a := attach(h, roomstate.Meditation, "r1", "c1", "")
	_, b := attach(h, roomstate.Meditation, "r1", "c2", "")

	m.Handle("duration:120")
	waitFor(t, b, "time:120")
	m.Handle("time:500")
	waitFor(t, b, "time:120")
	m.Handle("time:30")
	waitFor(t, b, "time:30")
	m.Handle("get_state")
	waitFor(t, a, "state:30,false,120")

	m.Handle("bogus")
	m.Handle("get_state")
	require.Eventually(t, func() bool { return len(a.messages()) == 6 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "state:30,false,120", a.messages()[5])
}

func TestHub_MusicPlaybackTransitionsOnly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock, &fakeDirectory{duration: 999}, nil)

	m, a := attach(h, roomstate.Music, "m1", "c1", "")
	assert.Equal(t, []string{"state:0,false,0"}, a.messages(), "music rooms have no countdown")

	m.Handle("playback:play")
	m.Handle("play")
	m.Handle("playback:pause")
	m.Handle("pause")
	m.Handle("get_state")
	require.Eventually(t, func() bool { return len(a.messages()) == 4 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{
		"state:0,false,0", "playback:play", "playback:pause", "state:0,false,0",
	}, a.messages())
}

func TestHub_MultiSessionUserStaysUntilLastLeaves(t *testing.T) {
	presence := &fakePresence{}
	h := newTestHub(t, clockwork.NewFakeClock(), &fakeDirectory{}, presence)

	tab1, _ := attach(h, roomstate.Meditation, "r1", "c1", "alice")
	tab2, _ := attach(h, roomstate.Meditation, "r1", "c2", "alice")
	_, bob := attach(h, roomstate.Meditation, "r1", "c3", "bob")

	tab1.Leave()
	tab1.Leave()
	before := len(bob.messages())

	tab2.Leave()
	waitFor(t, bob, "participants:bob")
	assert.Len(t, bob.messages(), before+1)

	assert.Equal(t, []string{"join:r1:alice", "join:r1:bob", "leave:r1:alice"}, presence.list())
}

func TestHub_EvictsFailingSession(t *testing.T) {
	h := newTestHub(t, clockwork.NewFakeClock(), &fakeDirectory{}, nil)

	m, alice := attach(h, roomstate.Meditation, "r1", "c1", "alice")
	_, bob := attach(h, roomstate.Meditation, "r1", "c2", "bob")

	bob.failSends(errors.New("broken pipe"))
	m.Handle("duration:10")
	waitFor(t, alice, "time:10")
	require.Eventually(t, func() bool {
		msgs := alice.messages()
		return msgs[len(msgs)-1] == "participants:alice"
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, bob.isClosed())
}

func TestHub_TeardownResetsState(t *testing.T) {
	h := newTestHub(t, clockwork.NewFakeClock(), &fakeDirectory{duration: 60}, nil)

	m, a := attach(h, roomstate.Meditation, "r1", "c1", "")
	m.Handle("time:10")
	waitFor(t, a, "time:10")
	m.Leave()

	rooms, sessions := h.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, sessions)

	_, again := attach(h, roomstate.Meditation, "r1", "c2", "")
	assert.Equal(t, []string{"state:60,false,60"}, again.messages())
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	h := newTestHub(t, clockwork.NewFakeClock(), &fakeDirectory{}, nil)

	m1, a := attach(h, roomstate.Meditation, "r1", "c1", "")
	_, other := attach(h, roomstate.Meditation, "r2", "c2", "")
	_, music := attach(h, roomstate.Music, "r1", "c3", "")

	m1.Handle("duration:5")
	waitFor(t, a, "time:5")

	assert.Equal(t, []string{"state:0,false,0"}, other.messages())
	assert.Equal(t, []string{"state:0,false,0"}, music.messages())

	rooms, _ := h.Stats()
	assert.Equal(t, 3, rooms)
}

func TestHub_DurationLookupFailureFallsBackToZero(t *testing.T) {
	h := newTestHub(t, clockwork.NewFakeClock(), &fakeDirectory{err: errors.New("db down")}, nil)

	_, a := attach(h, roomstate.Meditation, "r1", "c1", "")
	assert.Equal(t, []string{"state:0,false,0"}, a.messages())
}

func TestHub_CloseClosesTransports(t *testing.T) {
	h := NewHub(HubConfig{Clock: clockwork.NewFakeClock()})

	_, a := attach(h, roomstate.Meditation, "r1", "c1", "")
	_, b := attach(h, roomstate.Music, "r2", "c2", "")

	h.Close()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	rooms, _ := h.Stats()
	assert.Zero(t, rooms)
}

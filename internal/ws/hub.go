package ws

import (
	"context"
	"sync"
	"time"

	"zensyncgo/internal/roomstate"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RoomDirectory is the persistent room catalogue consulted when a room is
// created and when a connection asks to join one.
type RoomDirectory interface {
	GetRoomDuration(ctx context.Context, kind roomstate.Kind, roomID string) (int, error)
	RoomExists(ctx context.Context, kind roomstate.Kind, roomID string) (bool, error)
}

// PresenceRecorder is told when a user first appears in, or finally leaves,
// a live room. Implementations must not block.
type PresenceRecorder interface {
	Joined(kind roomstate.Kind, roomID, userID string)
	Left(kind roomstate.Kind, roomID, userID string)
}

type nopPresence struct{}

func (nopPresence) Joined(roomstate.Kind, string, string) {}
func (nopPresence) Left(roomstate.Kind, string, string)   {}

type HubConfig struct {
	Clock         clockwork.Clock
	TickInterval  time.Duration
	StrictNumbers bool
	LookupTimeout time.Duration
	Directory     RoomDirectory
	Presence      PresenceRecorder
}

// Hub owns every live room: rooms are created on the first attach and torn
// down when their last session leaves.
type Hub struct {
	cfg      HubConfig
	presence PresenceRecorder

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	rooms map[roomKey]*hubEntry
}

type hubEntry struct {
	room *room
	refs int
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 2 * time.Second
	}
	h := &Hub{cfg: cfg, presence: cfg.Presence, rooms: make(map[roomKey]*hubEntry)}
	if h.presence == nil {
		h.presence = nopPresence{}
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// Membership ties one session to its room. Handle and Leave may be called
// from the connection's reader goroutine.
type Membership struct {
	hub     *Hub
	key     roomKey
	room    *room
	session *Session
	once    sync.Once
}

// Attach registers s with its room, creating the room if needed. It returns
// once the room has sent the session its initial state.
func (h *Hub) Attach(s *Session) *Membership {
	key := roomKey{kind: s.Kind, id: s.RoomID}

	h.mu.Lock()
	e, ok := h.rooms[key]
	if !ok {
		e = &hubEntry{room: newRoom(h.ctx, key, h)}
		h.rooms[key] = e
		go e.room.loop()
	}
	e.refs++
	h.mu.Unlock()

	done := make(chan struct{})
	e.room.call(attachEvent{s: s, done: done}, done)
	return &Membership{hub: h, key: key, room: e.room, session: s}
}

// Handle queues one inbound text frame for the room.
func (m *Membership) Handle(text string) {
	m.room.post(frameEvent{connectionID: m.session.ConnectionID, text: text})
}

// Leave detaches the session. It is safe to call more than once.
func (m *Membership) Leave() {
	m.once.Do(func() {
		done := make(chan struct{})
		m.room.call(detachEvent{connectionID: m.session.ConnectionID, done: done}, done)
		m.hub.release(m.key, m.room)
	})
}

func (h *Hub) release(key roomKey, r *room) {
	h.mu.Lock()
	e, ok := h.rooms[key]
	if !ok || e.room != r {
		h.mu.Unlock()
		return
	}
	e.refs--
	last := e.refs <= 0
	if last {
		delete(h.rooms, key)
	}
	h.mu.Unlock()

	if last {
		r.stop()
		<-r.done
	}
}

func (h *Hub) initialDuration(ctx context.Context, key roomKey) int {
	if !key.kind.Countdown() || h.cfg.Directory == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, h.cfg.LookupTimeout)
	defer cancel()
	d, err := h.cfg.Directory.GetRoomDuration(ctx, key.kind, key.id)
	if err != nil {
		zap.L().Warn("room.duration_lookup",
			zap.String("room", key.String()),
			zap.Error(err))
		return 0
	}
	return d
}

// Stats reports the number of live rooms and attached sessions.
func (h *Hub) Stats() (rooms, sessions int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.rooms {
		rooms++
		sessions += e.refs
	}
	return rooms, sessions
}

// Close stops every room and closes their transports.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	entries := make([]*hubEntry, 0, len(h.rooms))
	for k, e := range h.rooms {
		entries = append(entries, e)
		delete(h.rooms, k)
	}
	h.mu.Unlock()
	for _, e := range entries {
		<-e.room.done
	}
}

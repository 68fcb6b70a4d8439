package ws

import (
	"context"
	"errors"

	"zensyncgo/internal/roomstate"

	"go.uber.org/zap"
)

const inboxSize = 64

// room is the single writer for one room: every mutation of state and
// sessions happens on the goroutine running loop, in the order events arrive.
type room struct {
	key      roomKey
	hub      *Hub
	state    *roomstate.State
	sessions *sessionRegistry
	timer    *timerDriver
	router   *Router

	inbox  chan roomEvent
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type roomKey struct {
	kind roomstate.Kind
	id   string
}

func (k roomKey) String() string { return k.kind.String() + "/" + k.id }

// roomEvent is anything the room loop can apply.
type roomEvent interface {
	apply(r *room)
}

type attachEvent struct {
	s    *Session
	done chan struct{}
}

type detachEvent struct {
	connectionID string
	done         chan struct{}
}

type frameEvent struct {
	connectionID string
	text         string
}

type tickEvent struct {
	gen uint64
}

func newRoom(parent context.Context, key roomKey, h *Hub) *room {
	ctx, cancel := context.WithCancel(parent)
	r := &room{
		key:      key,
		hub:      h,
		sessions: newSessionRegistry(),
		router:   defaultRouter,
		inbox:    make(chan roomEvent, inboxSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	r.timer = newTimerDriver(h.cfg.Clock, h.cfg.TickInterval, func(tctx context.Context, gen uint64) bool {
		return r.postCtx(tctx, tickEvent{gen: gen})
	})
	return r
}

// loop loads the initial state and applies events until the room is stopped.
func (r *room) loop() {
	defer close(r.done)
	defer r.timer.stop()

	r.state = roomstate.NewState(r.key.kind, r.key.id, r.hub.initialDuration(r.ctx, r.key))
	zap.L().Debug("room.created",
		zap.String("room", r.key.String()),
		zap.Int("duration", r.state.Duration))

	for {
		select {
		case <-r.ctx.Done():
			r.sessions.closeAll()
			zap.L().Debug("room.teardown", zap.String("room", r.key.String()))
			return
		case ev := <-r.inbox:
			ev.apply(r)
		}
	}
}

func (r *room) stop() { r.cancel() }

// post queues ev; it returns false once the room is stopped.
func (r *room) post(ev roomEvent) bool {
	return r.postCtx(r.ctx, ev)
}

func (r *room) postCtx(ctx context.Context, ev roomEvent) bool {
	select {
	case r.inbox <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-r.ctx.Done():
		return false
	}
}

// call posts ev and waits until the loop has applied it.
func (r *room) call(ev roomEvent, done <-chan struct{}) {
	if !r.post(ev) {
		return
	}
	select {
	case <-done:
	case <-r.done:
	}
}

func (r *room) broadcast(msg string) {
	evicted := r.sessions.broadcast([]byte(msg))
	for _, s := range evicted {
		r.forget(s)
	}
}

func (r *room) unicast(s *Session, msg string) {
	if evicted := r.sessions.unicast(s.ConnectionID, []byte(msg)); evicted != nil {
		r.forget(evicted)
	}
}

// forget drops the participant entry of a departed session when no other
// session of the same user remains, and tells the room.
func (r *room) forget(s *Session) {
	uid := s.userID()
	if uid == "" || r.sessions.hasUser(uid) {
		return
	}
	if !r.state.Leave(uid) {
		return
	}
	r.hub.presence.Left(r.key.kind, r.key.id, uid)
	r.broadcast(roomstate.ParticipantsMessage(r.state.Roster()))
}

func (e attachEvent) apply(r *room) {
	defer close(e.done)
	s := e.s
	if !r.sessions.add(s) {
		return
	}
	zap.L().Debug("room.attach",
		zap.String("room", r.key.String()),
		zap.String("conn", s.ConnectionID),
		zap.Int("sessions", r.sessions.len()))

	r.unicast(s, roomstate.StateMessage(r.state.Snapshot()))

	if s.Identity == nil {
		return
	}
	isNew := r.state.Join(s.Identity.UserID, s.Identity.DisplayName)
	r.broadcast(roomstate.ParticipantsMessage(r.state.Roster()))
	if isNew {
		r.hub.presence.Joined(r.key.kind, r.key.id, s.Identity.UserID)
		r.broadcast(roomstate.NewParticipantMessage(s.Identity.DisplayName))
	}
}

func (e detachEvent) apply(r *room) {
	defer close(e.done)
	s, ok := r.sessions.remove(e.connectionID)
	if !ok {
		return
	}
	zap.L().Debug("room.detach",
		zap.String("room", r.key.String()),
		zap.String("conn", s.ConnectionID),
		zap.Int("sessions", r.sessions.len()))
	r.forget(s)
}

func (e frameEvent) apply(r *room) {
	s, ok := r.sessions.get(e.connectionID)
	if !ok {
		return
	}
	cmd, err := roomstate.ParseCommand(r.key.kind, e.text, r.hub.cfg.StrictNumbers)
	if err != nil {
		if errors.Is(err, roomstate.ErrBadNumber) {
			zap.L().Warn("room.bad_command",
				zap.String("room", r.key.String()),
				zap.String("conn", s.ConnectionID),
				zap.String("frame", e.text))
		}
		return
	}
	r.router.dispatch(r, s, cmd)
}

func (e tickEvent) apply(r *room) {
	if !r.timer.current(e.gen) {
		return
	}
	decremented, completed := r.state.Tick()
	if decremented {
		r.broadcast(roomstate.TimeMessage(r.state.Remaining))
	}
	if completed {
		r.timer.stop()
		r.broadcast(roomstate.Completed)
	}
}

package ws

import (
	"zensyncgo/internal/roomstate"
)

// commandHandler applies one parsed command on behalf of session s.
type commandHandler func(r *room, s *Session, cmd roomstate.Command)

// Router maps each command op to its handler. Built once, shared by every room.
type Router struct {
	handlers map[roomstate.Op]commandHandler
}

func newRouter() *Router { return &Router{handlers: make(map[roomstate.Op]commandHandler)} }

func (rt *Router) handle(op roomstate.Op, h commandHandler) {
	if op == roomstate.OpUnknown {
		panic("ws router: unknown op")
	}
	rt.handlers[op] = h
}

// dispatch runs the handler for cmd; it reports false when none is registered.
func (rt *Router) dispatch(r *room, s *Session, cmd roomstate.Command) bool {
	h, ok := rt.handlers[cmd.Op]
	if !ok {
		return false
	}
	h(r, s, cmd)
	return true
}

// defaultRouter is the command table shared by both room kinds; kind-specific
// behaviour lives in roomstate's vocabulary tables.
var defaultRouter = func() *Router {
	rt := newRouter()

	rt.handle(roomstate.OpGetState, func(r *room, s *Session, _ roomstate.Command) {
		r.unicast(s, roomstate.StateMessage(r.state.Snapshot()))
	})

	rt.handle(roomstate.OpGetParticipants, func(r *room, s *Session, _ roomstate.Command) {
		r.unicast(s, roomstate.ParticipantsMessage(r.state.Roster()))
	})

	rt.handle(roomstate.OpSetDuration, func(r *room, _ *Session, cmd roomstate.Command) {
		r.state.SetDuration(cmd.Value)
		r.broadcast(roomstate.TimeMessage(r.state.Remaining))
	})

	rt.handle(roomstate.OpSetTime, func(r *room, _ *Session, cmd roomstate.Command) {
		r.broadcast(roomstate.TimeMessage(r.state.SetRemaining(cmd.Value)))
	})

	rt.handle(roomstate.OpPlay, func(r *room, _ *Session, _ roomstate.Command) {
		kind := r.state.Kind
		if !kind.Countdown() {
			if r.state.SetPlayback(true) {
				r.broadcast(kind.PlayMessage())
			}
			return
		}
		started, reset := r.state.Play()
		if !started {
			return
		}
		if reset {
			r.broadcast(roomstate.TimeMessage(r.state.Remaining))
		}
		r.broadcast(kind.PlayMessage())
		r.timer.start(r.ctx)
	})

	rt.handle(roomstate.OpPause, func(r *room, _ *Session, _ roomstate.Command) {
		if !r.state.Pause() {
			return
		}
		r.timer.stop()
		r.broadcast(r.state.Kind.PauseMessage())
	})

	return rt
}()

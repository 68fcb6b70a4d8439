package ws

import (
	"go.uber.org/zap"
)

// sessionRegistry is the set of live sessions of one room. It is owned by the
// room loop and never touched from any other goroutine.
type sessionRegistry struct {
	sessions map[string]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*Session)}
}

// add inserts s; it is a no-op when the connection ID is already present.
func (r *sessionRegistry) add(s *Session) bool {
	if _, ok := r.sessions[s.ConnectionID]; ok {
		return false
	}
	r.sessions[s.ConnectionID] = s
	return true
}

// remove deletes the session; it is a no-op when absent.
func (r *sessionRegistry) remove(connectionID string) (*Session, bool) {
	s, ok := r.sessions[connectionID]
	if ok {
		delete(r.sessions, connectionID)
	}
	return s, ok
}

func (r *sessionRegistry) get(connectionID string) (*Session, bool) {
	s, ok := r.sessions[connectionID]
	return s, ok
}

func (r *sessionRegistry) len() int { return len(r.sessions) }

// hasUser reports whether any remaining session belongs to userID.
func (r *sessionRegistry) hasUser(userID string) bool {
	for _, s := range r.sessions {
		if s.userID() == userID {
			return true
		}
	}
	return false
}

// broadcast sends msg to every session. Sessions whose send fails are
// closed, removed and returned so the caller can clean up after them.
func (r *sessionRegistry) broadcast(msg []byte) []*Session {
	var failed []*Session
	for _, s := range r.sessions {
		if err := s.conn.Send(msg); err != nil {
			zap.L().Warn("ws.broadcast_send",
				zap.String("room", s.RoomID),
				zap.String("conn", s.ConnectionID),
				zap.Error(err))
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		r.evict(s)
	}
	return failed
}

// unicast sends msg to one session and returns it when it had to be evicted.
func (r *sessionRegistry) unicast(connectionID string, msg []byte) *Session {
	s, ok := r.sessions[connectionID]
	if !ok {
		return nil
	}
	if err := s.conn.Send(msg); err != nil {
		zap.L().Warn("ws.unicast_send",
			zap.String("room", s.RoomID),
			zap.String("conn", s.ConnectionID),
			zap.Error(err))
		r.evict(s)
		return s
	}
	return nil
}

func (r *sessionRegistry) evict(s *Session) {
	delete(r.sessions, s.ConnectionID)
	_ = s.conn.Close()
}

// closeAll closes every transport; used on room teardown.
func (r *sessionRegistry) closeAll() {
	for id, s := range r.sessions {
		_ = s.conn.Close()
		delete(r.sessions, id)
	}
}

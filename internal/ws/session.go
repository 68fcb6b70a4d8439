package ws

import (
	"zensyncgo/internal/roomstate"
)

// Identity is the caller identity handed over by the upstream auth layer.
type Identity struct {
	UserID      string
	DisplayName string
}

// transport is the outbound half of one client connection.
type transport interface {
	Send(msg []byte) error
	Close() error
}

// Session is one live connection attached to a room. It is built once at
// handshake and never mutated.
type Session struct {
	ConnectionID string
	Kind         roomstate.Kind
	RoomID       string
	// nil for observers that are not counted as participants
	Identity *Identity

	conn transport
}

func NewSession(connectionID string, kind roomstate.Kind, roomID string, identity *Identity, conn transport) *Session {
	return &Session{
		ConnectionID: connectionID,
		Kind:         kind,
		RoomID:       roomID,
		Identity:     identity,
		conn:         conn,
	}
}

func (s *Session) userID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.UserID
}

// Package roomstate holds the authoritative state of a single room and the
// text vocabulary used to talk about it. Nothing here is safe for concurrent
// use; the owning room loop serialises every call.
package roomstate

import "sort"

// State is the mutable state of one room.
type State struct {
	Kind      Kind
	RoomID    string
	Duration  int
	Remaining int
	Playing   bool

	// userID -> display name
	participants map[string]string
}

// Snapshot is the (remaining, playing, duration) triple sent by get_state.
type Snapshot struct {
	Remaining int
	Playing   bool
	Duration  int
}

func NewState(kind Kind, roomID string, duration int) *State {
	if duration < 0 {
		duration = 0
	}
	return &State{
		Kind:         kind,
		RoomID:       roomID,
		Duration:     duration,
		Remaining:    duration,
		participants: make(map[string]string),
	}
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{Remaining: s.Remaining, Playing: s.Playing, Duration: s.Duration}
}

// SetDuration sets both the configured length and the countdown to n.
func (s *State) SetDuration(n int) {
	if n < 0 {
		n = 0
	}
	s.Duration = n
	s.Remaining = n
}

// SetRemaining stores n clamped to [0, Duration] and returns the stored value.
// A room without a configured duration adopts n as its duration.
func (s *State) SetRemaining(n int) int {
	if n < 0 {
		n = 0
	}
	switch {
	case s.Duration == 0:
		s.Duration = n
	case n > s.Duration:
		n = s.Duration
	}
	s.Remaining = n
	return n
}

// Play starts a countdown cycle. A finished countdown restarts from Duration.
// It returns started=false when the room was already playing or has nothing to
// count down, and reset=true when Remaining was rewound to Duration.
func (s *State) Play() (started, reset bool) {
	if s.Playing {
		return false, false
	}
	if s.Remaining == 0 && s.Duration > 0 {
		s.Remaining = s.Duration
		reset = true
	}
	if s.Remaining == 0 {
		return false, false
	}
	s.Playing = true
	return true, reset
}

// SetPlayback flips the playing flag without touching the countdown (music
// rooms). It reports whether the flag changed.
func (s *State) SetPlayback(playing bool) bool {
	if s.Playing == playing {
		return false
	}
	s.Playing = playing
	return true
}

// Pause reports whether the room was playing.
func (s *State) Pause() bool {
	return s.SetPlayback(false)
}

// Tick advances the countdown by one second. decremented is true when
// Remaining changed; completed is true exactly once per cycle, when the
// countdown has reached zero and Playing was cleared.
func (s *State) Tick() (decremented, completed bool) {
	if !s.Playing {
		return false, false
	}
	if s.Remaining > 0 {
		s.Remaining--
		decremented = true
	}
	if s.Remaining == 0 {
		s.Playing = false
		completed = true
	}
	return decremented, completed
}

// Join records userID as a participant, overwriting the display name of an
// existing entry. It reports whether the user was not present before.
func (s *State) Join(userID, displayName string) bool {
	_, present := s.participants[userID]
	s.participants[userID] = displayName
	return !present
}

// Leave removes userID and reports whether it was present.
func (s *State) Leave(userID string) bool {
	if _, ok := s.participants[userID]; !ok {
		return false
	}
	delete(s.participants, userID)
	return true
}

// Roster returns the display names of all participants, sorted.
func (s *State) Roster() []string {
	names := make([]string, 0, len(s.participants))
	for _, name := range s.participants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *State) ParticipantCount() int { return len(s.participants) }

package roomstate

import (
	"errors"
	"strings"
)

// Kind selects the command vocabulary and broadcast strings of a room.
type Kind uint8

const (
	Meditation Kind = iota + 1
	Music
)

var ErrInvalidKind = errors.New("invalid room kind")

// vocabulary is the per-kind decode/encode table.
type vocabulary struct {
	name     string
	commands map[string]Op
	play     string
	pause    string
	// countdown is true when play/pause drive the Timer Driver.
	countdown bool
}

var vocabularies = map[Kind]vocabulary{
	Meditation: {
		name: "meditation",
		commands: map[string]Op{
			"get_state":        OpGetState,
			"get_participants": OpGetParticipants,
			"play":             OpPlay,
			"pause":            OpPause,
		},
		play:      "play",
		pause:     "pause",
		countdown: true,
	},
	Music: {
		name: "music",
		commands: map[string]Op{
			"get_state":        OpGetState,
			"get_participants": OpGetParticipants,
			"play":             OpPlay,
			"pause":            OpPause,
			"playback:play":    OpPlay,
			"playback:pause":   OpPause,
		},
		play:  "playback:play",
		pause: "playback:pause",
	},
}

// ParseKind maps a path segment ("meditation", "music") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "meditation":
		return Meditation, nil
	case "music":
		return Music, nil
	}
	return 0, ErrInvalidKind
}

func (k Kind) String() string {
	if v, ok := vocabularies[k]; ok {
		return v.name
	}
	return "unknown"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := vocabularies[k]
	return ok
}

// Countdown reports whether play/pause in this kind of room run the timer.
func (k Kind) Countdown() bool { return vocabularies[k].countdown }

// PlayMessage is the wire string broadcast when playback starts.
func (k Kind) PlayMessage() string { return vocabularies[k].play }

// PauseMessage is the wire string broadcast when playback stops.
func (k Kind) PauseMessage() string { return vocabularies[k].pause }

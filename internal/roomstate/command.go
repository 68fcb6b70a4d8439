package roomstate

import (
	"errors"
	"strconv"
	"strings"
)

// Op identifies one inbound command.
type Op uint8

const (
	OpUnknown Op = iota
	OpGetState
	OpGetParticipants
	OpSetDuration
	OpSetTime
	OpPlay
	OpPause
)

var opNames = map[Op]string{
	OpUnknown:         "unknown",
	OpGetState:        "get_state",
	OpGetParticipants: "get_participants",
	OpSetDuration:     "duration",
	OpSetTime:         "time",
	OpPlay:            "play",
	OpPause:           "pause",
}

func (o Op) String() string { return opNames[o] }

const (
	durationPrefix = "duration:"
	timePrefix     = "time:"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadNumber      = errors.New("malformed numeric payload")
)

// Command is one parsed inbound frame.
type Command struct {
	Op    Op
	Value int
}

// ParseCommand decodes a text frame for a room of the given kind.
//
// With strict=false a numeric payload that does not parse (or a negative
// duration) becomes 0. With strict=true those frames return ErrBadNumber.
// Negative time values are clamped by State.SetRemaining in both modes.
func ParseCommand(kind Kind, frame string, strict bool) (Command, error) {
	frame = strings.TrimSpace(frame)

	if rest, ok := strings.CutPrefix(frame, durationPrefix); ok {
		n, err := parseNumber(rest, strict)
		if err != nil {
			return Command{}, err
		}
		if n < 0 {
			if strict {
				return Command{}, ErrBadNumber
			}
			n = 0
		}
		return Command{Op: OpSetDuration, Value: n}, nil
	}

	if rest, ok := strings.CutPrefix(frame, timePrefix); ok {
		n, err := parseNumber(rest, strict)
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpSetTime, Value: n}, nil
	}

	v, ok := vocabularies[kind]
	if !ok {
		return Command{}, ErrInvalidKind
	}
	if op, ok := v.commands[frame]; ok {
		return Command{Op: op}, nil
	}
	return Command{}, ErrUnknownCommand
}

func parseNumber(s string, strict bool) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		if strict {
			return 0, ErrBadNumber
		}
		return 0, nil
	}
	return n, nil
}

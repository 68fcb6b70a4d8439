package roomstate

import (
	"strconv"
	"strings"
)

// Completed is broadcast once when a countdown reaches zero.
const Completed = "completed"

// StateMessage encodes "state:<remaining>,<isPlaying>,<duration>".
func StateMessage(s Snapshot) string {
	return "state:" + strconv.Itoa(s.Remaining) + "," +
		strconv.FormatBool(s.Playing) + "," + strconv.Itoa(s.Duration)
}

// TimeMessage encodes "time:<n>".
func TimeMessage(n int) string { return timePrefix + strconv.Itoa(n) }

// ParticipantsMessage encodes "participants:<csv of display names>".
func ParticipantsMessage(names []string) string {
	return "participants:" + strings.Join(names, ",")
}

// NewParticipantMessage encodes "new_participant:<name>".
func NewParticipantMessage(name string) string { return "new_participant:" + name }

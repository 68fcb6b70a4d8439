package roomstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		frame   string
		strict  bool
		want    Command
		wantErr error
	}{
		{name: "get_state", kind: Meditation, frame: "get_state", want: Command{Op: OpGetState}},
		{name: "get_participants", kind: Music, frame: "get_participants", want: Command{Op: OpGetParticipants}},
		{name: "duration", kind: Meditation, frame: "duration:300", want: Command{Op: OpSetDuration, Value: 300}},
		{name: "time", kind: Meditation, frame: "time:90", want: Command{Op: OpSetTime, Value: 90}},
		{name: "trailing newline", kind: Meditation, frame: "pause\n", want: Command{Op: OpPause}},
		{name: "meditation play", kind: Meditation, frame: "play", want: Command{Op: OpPlay}},
		{name: "music play", kind: Music, frame: "play", want: Command{Op: OpPlay}},
		{name: "music playback pause", kind: Music, frame: "playback:pause", want: Command{Op: OpPause}},
		{name: "playback vocabulary is music only", kind: Meditation, frame: "playback:play", wantErr: ErrUnknownCommand},
		{name: "unknown frame", kind: Meditation, frame: "hello", wantErr: ErrUnknownCommand},

		// lenient parsing keeps the room usable under malformed input
		{name: "lenient bad time", kind: Meditation, frame: "time:abc", want: Command{Op: OpSetTime, Value: 0}},
		{name: "lenient bad duration", kind: Meditation, frame: "duration:", want: Command{Op: OpSetDuration, Value: 0}},
		{name: "lenient negative duration", kind: Meditation, frame: "duration:-10", want: Command{Op: OpSetDuration, Value: 0}},
		{name: "negative time passes through", kind: Meditation, frame: "time:-10", want: Command{Op: OpSetTime, Value: -10}},

		{name: "strict bad time", kind: Meditation, frame: "time:abc", strict: true, wantErr: ErrBadNumber},
		{name: "strict negative duration", kind: Meditation, frame: "duration:-10", strict: true, wantErr: ErrBadNumber},
		{name: "strict good duration", kind: Meditation, frame: "duration:60", strict: true, want: Command{Op: OpSetDuration, Value: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.kind, tt.frame, tt.strict)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Meditation")
	assert.NoError(t, err)
	assert.Equal(t, Meditation, k)
	assert.True(t, k.Countdown())

	k, err = ParseKind("music")
	assert.NoError(t, err)
	assert.Equal(t, "music", k.String())
	assert.False(t, k.Countdown())

	_, err = ParseKind("podcast")
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.False(t, Kind(0).Valid())
}

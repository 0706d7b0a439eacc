package firmware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	require := require.New(t)

	d, err := Lookup("GRBL")
	require.NoError(err)
	require.Equal("grbl", d.Name())
	require.Equal(128, d.BufferCapacity())
	require.False(d.SupportsRealtimeParserState())

	d, err = Lookup(" grblHAL ")
	require.NoError(err)
	require.Equal("grblhal", d.Name())
	require.Equal(1024, d.BufferCapacity())
	require.True(d.SupportsRealtimeParserState())

	_, err = Lookup("marlin")
	require.ErrorIs(err, ErrUnknownFirmware)

	require.Equal([]string{"grbl", "grblhal"}, Names())
}

func TestRealtimeEncoding(t *testing.T) {
	require := require.New(t)

	grbl := NewGrbl()
	expected := map[RealtimeCommand]byte{
		RealtimeStatusQuery: '?',
		RealtimeFeedHold:    '!',
		RealtimeCycleStart:  '~',
		RealtimeSoftReset:   0x18,
		RealtimeSafetyDoor:  0x84,
		RealtimeJogCancel:   0x85,
	}
	for cmd, want := range expected {
		b, err := grbl.Realtime(cmd)
		require.NoError(err, cmd.String())
		require.Equal(want, b, cmd.String())
	}

	_, err := grbl.Realtime(RealtimeParserState)
	require.ErrorIs(err, ErrUnsupported)

	hal := NewGrblHAL()
	b, err := hal.Realtime(RealtimeParserState)
	require.NoError(err)
	require.Equal(byte(0x83), b)
	b, err = hal.Realtime(RealtimeSoftReset)
	require.NoError(err)
	require.Equal(byte(0x18), b)
}

func TestOverrideEncoding(t *testing.T) {
	require := require.New(t)

	grbl := NewGrbl()
	for o := OverrideFeedReset; o <= OverrideToggleMistCoolant; o++ {
		b, err := grbl.Override(o)
		require.NoError(err, o.String())
		require.GreaterOrEqual(b, byte(0x90))
		require.LessOrEqual(b, byte(0xA1))

		parsed, ok := ParseOverride(o.String())
		require.True(ok)
		require.Equal(o, parsed)
	}

	b, err := grbl.Override(OverrideRapid25)
	require.NoError(err)
	require.Equal(byte(0x97), b)
	b, err = grbl.Override(OverrideToggleSpindleStop)
	require.NoError(err)
	require.Equal(byte(0x9E), b)

	_, err = grbl.Override(Override(99))
	require.ErrorIs(err, ErrUnsupported)
}

func TestSystemCommands(t *testing.T) {
	require := require.New(t)

	for _, d := range []Dialect{NewGrbl(), NewGrblHAL()} {
		require.Equal("$X", d.SystemCommand(SystemUnlock))
		require.Equal("$H", d.SystemCommand(SystemHoming))
		require.Equal("$C", d.SystemCommand(SystemCheckMode))
		require.Equal("$G", d.SystemCommand(SystemParserState))
	}
}

func TestDescriptions(t *testing.T) {
	require := require.New(t)

	grbl := NewGrbl()
	require.Contains(grbl.ErrorDescription(20), "Unsupported or invalid g-code")
	require.Contains(grbl.AlarmDescription(1), "Hard limit")
	require.Equal("unknown alarm 99", grbl.AlarmDescription(99))

	hal := NewGrblHAL()
	require.Contains(hal.AlarmDescription(11), "Homing required")
	require.Contains(hal.AlarmDescription(1), "Hard limit")
	require.Contains(hal.ErrorDescription(9), "locked out")
}

package command

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"G1 X10 F500", "G1 X10 F500"},
		{"  G0 Z5 ; lift  ", "G0 Z5"},
		{"G1 (cut) X1 (more) Y2", "G1  X1  Y2"},
		{"(only a comment)", ""},
		{"; header", ""},
		{"", ""},
		{"G1 X1\r\n", "G1 X1"},
		{"$J=G91X1F100", "$J=G91X1F100"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestNewCommand(t *testing.T) {
	require := require.New(t)

	cmd := New("G1 X10 Y-2 F500 ; cut")
	require.Equal("G1 X10 Y-2 F500", cmd.Text)
	require.Equal(len("G1 X10 Y-2 F500")+1, cmd.Size())
	require.Equal(StateQueued, cmd.State())
	require.False(cmd.RestoreParserState)
	require.True(cmd.Metadata.Parsed)
	require.True(cmd.Metadata.Motion)
	require.False(cmd.Metadata.Probe)
	require.Equal("GXYF", cmd.Metadata.Letters)

	cmd = NewRestoring("G91 G21 G38.2 Z-10 F100")
	require.True(cmd.RestoreParserState)
	require.True(cmd.Metadata.Probe)
	require.True(cmd.Metadata.Motion)

	cmd = New("G10 L20 P0 X0")
	require.True(cmd.Metadata.Offset)
	require.False(cmd.Metadata.Motion)

	cmd = New("$H")
	require.True(cmd.Metadata.System)
	require.False(cmd.Metadata.Parsed)

	require.True(New("(nothing)").IsEmpty())
}

func TestCommandLifecycle(t *testing.T) {
	require := require.New(t)

	cmd := New("G90")
	cmd.MarkSent()
	require.Equal(StateSent, cmd.State())
	cmd.MarkAcknowledged()
	require.Equal(StateAcknowledged, cmd.State())

	cmd = New("G5")
	cmd.MarkSent()
	cmd.MarkFailed(20)
	require.Equal(StateFailed, cmd.State())
	require.Equal(20, cmd.ErrorCode())
	require.Equal("failed", cmd.State().String())
}

func TestFormatNumber(t *testing.T) {
	require := require.New(t)

	require.Equal("10", FormatNumber(10))
	require.Equal("-2.5", FormatNumber(-2.5))
	require.Equal("0.3333", FormatNumber(1.0/3))
	require.Equal("0", FormatNumber(-0.00001))
	require.Equal("2.7183", FormatNumber(2.71828))
}

func TestSpaceWords(t *testing.T) {
	require := require.New(t)

	require.Equal("G21 G91 X10 F500", SpaceWords("G21G91X10F500"))
	require.Equal("G1 X10 Y-2", SpaceWords("G1 X10 Y-2"))

	cmd := New("G1X10Y20F300")
	require.True(cmd.Metadata.Motion)
	require.Equal("GXYF", cmd.Metadata.Letters)
}

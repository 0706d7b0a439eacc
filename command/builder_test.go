package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gsender/machine"
)

func TestJogLine(t *testing.T) {
	require := require.New(t)

	line, err := JogLine(machine.XYZ(machine.UnitsMM, 10, 0, 0), 500, false)
	require.NoError(err)
	require.Equal("$J=G21G91X10F500", line)

	line, err = JogLine(machine.XYZ(machine.UnitsInch, 0, -0.5, 1), 20, false)
	require.NoError(err)
	require.Equal("$J=G20G91Y-0.5Z1F20", line)

	line, err = JogLine(machine.XYZ(machine.UnitsMM, 0, 0, 5), 1000, true)
	require.NoError(err)
	require.Equal("$J=G21G90X0Y0Z5F1000", line)

	_, err = JogLine(machine.XYZ(machine.UnitsMM, 0, 0, 0), 500, false)
	require.ErrorIs(err, ErrNoAxes)

	_, err = JogLine(machine.XYZ(machine.UnitsMM, 1, 0, 0), 0, false)
	require.ErrorIs(err, ErrInvalidFeed)
}

func TestProbeLine(t *testing.T) {
	require := require.New(t)

	line, err := ProbeLine(machine.AxisZ, -10, 100, machine.UnitsMM)
	require.NoError(err)
	require.Equal("G91 G21 G38.2 Z-10 F100", line)

	_, err = ProbeLine(machine.AxisZ, -10, 0, machine.UnitsMM)
	require.ErrorIs(err, ErrInvalidFeed)
}

func TestOffsetLines(t *testing.T) {
	require := require.New(t)

	line, err := SetWorkPositionLine(machine.NewPosition(machine.UnitsMM).With(machine.AxisX, 20).With(machine.AxisY, 0))
	require.NoError(err)
	require.Equal("G21 G10 L20 P0 X20 Y0", line)

	_, err = SetWorkPositionLine(machine.NewPosition(machine.UnitsMM))
	require.ErrorIs(err, ErrNoAxes)

	line, err = ToolOffsetLine(machine.AxisZ, 1.25, machine.UnitsInch)
	require.NoError(err)
	require.Equal("G20 G43.1 Z1.25", line)
}

func TestReturnToZeroLines(t *testing.T) {
	require := require.New(t)

	lines := ReturnToZeroLines(machine.XYZ(machine.UnitsMM, 5, 5, 1), 10)
	require.Equal([]string{"G21 G90 G0 Z10", "G21 G90 G0 X0 Y0", "G21 G90 G0 Z0"}, lines)

	lines = ReturnToZeroLines(machine.XYZ(machine.UnitsMM, 5, 5, 20), 10)
	require.Equal([]string{"G21 G90 G0 X0 Y0", "G21 G90 G0 Z0"}, lines)
}

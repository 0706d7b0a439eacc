package grblsim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gsender/machine"
	"github.com/arloliu/go-gsender/transport"
)

func readLine(t *testing.T, s *Sim) string {
	t.Helper()

	line, err := s.ReadLine()
	require.NoError(t, err)

	return line
}

func TestSimBannerAndStatus(t *testing.T) {
	require := require.New(t)

	s := New()
	defer s.Close()

	require.Equal(grblBanner, readLine(t, s))

	require.NoError(s.WriteRaw([]byte{'?'}))
	require.Equal("<Idle|MPos:0.000,0.000,0.000|Bf:15,128|FS:0,0|Ov:100,100,100|WCO:0.000,0.000,0.000>", readLine(t, s))
}

func TestSimMotionAndOffsets(t *testing.T) {
	require := require.New(t)

	s := New(WithSilentStart())
	defer s.Close()

	for _, line := range []string{"G21 G90", "G0 X10 Y20 Z5", "G91 G1 X1 F100", "G21 G10 L20 P0 X0 Y0"} {
		require.NoError(s.WriteLine(line))
		require.Equal("ok", readLine(t, s), line)
	}

	require.Equal(machine.XYZ(machine.UnitsMM, 11, 20, 5), s.MachinePosition())
	require.Equal(machine.XYZ(machine.UnitsMM, 11, 20, 0), s.WorkOffset())

	require.NoError(s.WriteLine("$J=G21G91X-1F500"))
	require.Equal("ok", readLine(t, s))
	require.Equal(10.0, s.MachinePosition().Value(machine.AxisX))

	require.NoError(s.WriteLine("$G"))
	require.Equal("[GC:G1 G54 G17 G21 G91 G94 M5 M9 T0 F100 S0]", readLine(t, s))
	require.Equal("ok", readLine(t, s))

	require.NoError(s.WriteLine("G20 G43.1 Z1"))
	require.Equal("ok", readLine(t, s))
	require.InDelta(25.4, s.ToolOffset(), 1e-9)

	require.NoError(s.WriteLine("G5.1"))
	require.Equal("error:20", readLine(t, s))
	require.NoError(s.WriteLine("$Q"))
	require.Equal("error:3", readLine(t, s))
}

func TestSimAlarmUnlockReset(t *testing.T) {
	require := require.New(t)

	s := New(WithSilentStart())
	defer s.Close()

	s.TriggerAlarm(1)
	require.Equal("ALARM:1", readLine(t, s))
	require.Equal(machine.RunStateAlarm, s.State())

	require.NoError(s.WriteLine("G0 X1"))
	require.Equal("error:9", readLine(t, s))

	require.NoError(s.WriteRaw([]byte{0x18}))
	require.Equal(grblBanner, readLine(t, s))
	require.Equal("[MSG:'$H'|'$X' to unlock]", readLine(t, s))
	require.Equal(machine.RunStateAlarm, s.State())

	require.NoError(s.WriteLine("$X"))
	require.Equal("[MSG:Caution: Unlocked]", readLine(t, s))
	require.Equal("ok", readLine(t, s))
	require.Equal(machine.RunStateIdle, s.State())
}

func TestSimProbe(t *testing.T) {
	require := require.New(t)

	s := New(WithSilentStart(), WithProbeContact(-3))
	defer s.Close()

	require.NoError(s.WriteLine("G91 G21 G38.2 Z-10 F100"))
	require.Equal("[PRB:0.000,0.000,-3.000:1]", readLine(t, s))
	require.Equal("ok", readLine(t, s))

	miss := New(WithSilentStart())
	defer miss.Close()

	require.NoError(miss.WriteLine("G91 G21 G38.2 Z-10 F100"))
	require.Equal("ALARM:5", readLine(t, miss))
	require.Equal(machine.RunStateAlarm, miss.State())
}

func TestSimManualAck(t *testing.T) {
	require := require.New(t)

	s := New(WithSilentStart(), WithManualAck())
	defer s.Close()

	require.NoError(s.WriteLine("G90"))
	require.NoError(s.WriteLine("G91"))
	require.Equal(2, s.HeldAcks())
	require.Equal(8, s.MaxBuffered())

	require.Equal(1, s.AckNext(1))
	require.Equal("ok", readLine(t, s))
	require.Equal(1, s.HeldAcks())

	require.NoError(s.WriteRaw([]byte{0x18}))
	require.Equal(grblBanner, readLine(t, s))
	require.Zero(s.HeldAcks())
	require.True(s.HasRealtime(0x18))
	require.Equal([]string{"G90", "G91"}, s.Lines())
}

func TestSimOverridesAndHold(t *testing.T) {
	require := require.New(t)

	s := New(WithSilentStart())
	defer s.Close()

	require.NoError(s.WriteRaw([]byte{0x91, 0x91, 0x94, 0x97, 0x9B}))
	require.NoError(s.WriteRaw([]byte{'?'}))
	require.Contains(readLine(t, s), "|Ov:119,25,90|")

	s.SetState(machine.RunStateRun, 0)
	require.NoError(s.WriteRaw([]byte{'!', '?'}))
	require.Contains(readLine(t, s), "<Hold:0|")
	require.NoError(s.WriteRaw([]byte{'~', '?'}))
	require.Contains(readLine(t, s), "<Idle|")
}

func TestSimDisconnect(t *testing.T) {
	require := require.New(t)

	s := New(WithSilentStart())
	s.Disconnect()

	_, err := s.ReadLine()
	require.ErrorIs(err, transport.ErrClosed)
	require.ErrorIs(s.WriteLine("G0"), transport.ErrClosed)
}

func TestSimGrblHAL(t *testing.T) {
	require := require.New(t)

	s := New(WithGrblHAL())
	defer s.Close()

	require.Equal(grblHALBanner, readLine(t, s))
	require.NoError(s.WriteRaw([]byte{0x83}))
	require.Equal("[GC:G0 G54 G17 G21 G90 G94 M5 M9 T0 F0 S0]", readLine(t, s))
}

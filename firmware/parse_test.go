package firmware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gsender/machine"
)

func TestParseSimpleLines(t *testing.T) {
	require := require.New(t)
	g := NewGrbl()

	resp, err := g.ParseLine("", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseNone, resp.Kind)

	resp, err = g.ParseLine("ok\r", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseAck, resp.Kind)
	require.True(resp.IsAcknowledgment())

	resp, err = g.ParseLine("error:22", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseError, resp.Kind)
	require.Equal(22, resp.Code)
	require.True(resp.IsAcknowledgment())

	resp, err = g.ParseLine("ALARM:2", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseAlarm, resp.Kind)
	require.Equal(2, resp.Code)
	require.False(resp.IsAcknowledgment())

	resp, err = g.ParseLine("Grbl 1.1h ['$' for help]", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseWelcome, resp.Kind)
	require.Equal("1.1h", resp.Version)

	resp, err = g.ParseLine("[MSG:'$H'|'$X' to unlock]", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseMessage, resp.Kind)
	require.Equal("'$H'|'$X' to unlock", resp.Message)

	resp, err = g.ParseLine("$110=500.000", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseSetting, resp.Kind)
	require.Equal(Setting{Key: "$110", Value: "500.000"}, resp.Setting)

	resp, err = g.ParseLine(">G54:ok", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseMessage, resp.Kind)
}

func TestParseMalformed(t *testing.T) {
	g := NewGrbl()
	for _, line := range []string{
		"garbage",
		"error:x",
		"ALARM:",
		"<Dancing|MPos:0,0,0>",
		"<Idle|MPos:0,zero,0>",
		"[PRB:1,2,3]",
		"<Idle|FS:100>",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := g.ParseLine(line, machine.UnitsMM)
			require.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestParseStatus(t *testing.T) {
	require := require.New(t)
	g := NewGrbl()

	resp, err := g.ParseLine("<Hold:1|MPos:10.000,-5.500,2.000|FS:500,12000|WCO:1.000,2.000,3.000|Ov:120,50,100|Bf:15,127|Pn:XP>", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseStatus, resp.Kind)

	s := resp.Status
	require.Equal(machine.RunStateHold, s.RunState)
	require.Equal(1, s.SubState)
	require.Equal(machine.XYZ(machine.UnitsMM, 10, -5.5, 2), s.MachinePosition)
	require.True(s.WorkPosition.IsEmpty())
	require.Equal(machine.XYZ(machine.UnitsMM, 1, 2, 3), s.WorkOffset)
	require.True(s.HasFeed)
	require.Equal(500.0, s.FeedRate)
	require.Equal(12000.0, s.SpindleSpeed)
	require.True(s.HasOverrides)
	require.Equal(machine.Overrides{Feed: 120, Rapid: 50, Spindle: 100}, s.Overrides)
	require.True(s.HasBuffer)
	require.Equal(machine.BufferState{PlannerBlocks: 15, RxBytes: 127}, s.Buffer)
	require.Equal("XP", s.Pins)

	resp, err = g.ParseLine("<Jog|WPos:1,2,3,45|F:300>", machine.UnitsInch)
	require.NoError(err)
	require.Equal(machine.RunStateJog, resp.Status.RunState)
	require.Equal(machine.UnitsInch, resp.Status.WorkPosition.Units)
	require.Equal(45.0, resp.Status.WorkPosition.Value(machine.AxisA))
	require.Equal(300.0, resp.Status.FeedRate)
}

func TestParseProbe(t *testing.T) {
	require := require.New(t)
	g := NewGrbl()

	resp, err := g.ParseLine("[PRB:0.000,0.000,-1.234:1]", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseProbe, resp.Kind)
	require.True(resp.Probe.Success)
	require.Equal(-1.234, resp.Probe.Position.Value(machine.AxisZ))

	resp, err = g.ParseLine("[PRB:0.000,0.000,0.000:0]", machine.UnitsMM)
	require.NoError(err)
	require.False(resp.Probe.Success)
}

func TestParseParserState(t *testing.T) {
	require := require.New(t)
	g := NewGrbl()

	resp, err := g.ParseLine("[GC:G1 G55 G18 G20 G91 G94 M3 M7 M8 T2 F500 S12000]", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseParserState, resp.Kind)

	p := resp.Parser
	require.True(p.Known)
	require.Equal("G1", p.Motion)
	require.Equal("G55", p.WCS)
	require.Equal("G18", p.Plane)
	require.Equal(machine.UnitsInch, p.Units)
	require.Equal("G91", p.Distance)
	require.Equal("G94", p.FeedMode)
	require.Equal("M3", p.Spindle)
	require.Equal("M7 M8", p.Coolant)
	require.Equal(2, p.Tool)
	require.Equal(500.0, p.Feed)
	require.Equal(12000.0, p.Speed)
	require.Equal("G20 G91 G18 G94 G55", p.RestoreCommand())

	resp, err = g.ParseLine("[GC:G38.2 G54 G17 G21 G90 G94 M5 M9 T0 F0 S0]", machine.UnitsMM)
	require.NoError(err)
	require.Equal("G38.2", resp.Parser.Motion)
	require.Equal("G54", resp.Parser.WCS)
}

func TestGrblHALParse(t *testing.T) {
	require := require.New(t)
	hal := NewGrblHAL()

	resp, err := hal.ParseLine("GrblHAL 1.1f ['$' or '$HELP' for help]", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseWelcome, resp.Kind)
	require.Equal("1.1f", resp.Version)

	resp, err = hal.ParseLine("Grbl 1.1f ['$' or '$HELP' for help]", machine.UnitsMM)
	require.NoError(err)
	require.Equal(ResponseWelcome, resp.Kind)

	// plain GRBL does not recognize the grblHAL banner
	_, err = NewGrbl().ParseLine("GrblHAL 1.1f ['$' or '$HELP' for help]", machine.UnitsMM)
	require.ErrorIs(err, ErrMalformedResponse)
}

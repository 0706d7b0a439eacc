package machine

import (
	"fmt"
	"strconv"
	"strings"
)

// RunState is the firmware-reported activity state of the machine.
type RunState uint8

const (
	RunStateUnknown RunState = iota
	RunStateIdle
	RunStateRun
	RunStateHold
	RunStateJog
	RunStateHome
	RunStateAlarm
	RunStateDoor
	RunStateCheck
	RunStateSleep
)

var runStateNames = map[RunState]string{
	RunStateUnknown: "Unknown",
	RunStateIdle:    "Idle",
	RunStateRun:     "Run",
	RunStateHold:    "Hold",
	RunStateJog:     "Jog",
	RunStateHome:    "Home",
	RunStateAlarm:   "Alarm",
	RunStateDoor:    "Door",
	RunStateCheck:   "Check",
	RunStateSleep:   "Sleep",
}

func (s RunState) String() string {
	if name, ok := runStateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("RunState(%d)", s)
}

// ParseRunState maps a firmware state name ("Idle", "Hold", ...) to a RunState.
// Unknown names map to RunStateUnknown.
func ParseRunState(name string) RunState {
	for s, n := range runStateNames {
		if strings.EqualFold(n, name) {
			return s
		}
	}

	return RunStateUnknown
}

// IsMoving reports whether the machine executes motion in this state.
func (s RunState) IsMoving() bool {
	return s == RunStateRun || s == RunStateJog || s == RunStateHome
}

// Overrides holds the override percentages reported by the firmware.
type Overrides struct {
	Feed    int
	Rapid   int
	Spindle int
}

// DefaultOverrides is the power-on override set.
var DefaultOverrides = Overrides{Feed: 100, Rapid: 100, Spindle: 100}

// BufferState is the firmware's free planner blocks and free receive bytes.
type BufferState struct {
	PlannerBlocks int
	RxBytes       int
}

// ParserState is the firmware's modal G-code state as reported by $G.
type ParserState struct {
	Known    bool
	Motion   string // G0, G1, G38.2 ...
	WCS      string // G54..G59
	Plane    string // G17, G18, G19
	Units    Units
	Distance string // G90 or G91
	FeedMode string // G93 or G94
	Spindle  string // M3, M4, M5
	Coolant  string // M7, M8, M9
	Tool     int
	Feed     float64
	Speed    float64
	Raw      string
}

// RestoreCommand builds the G-code line restoring units, distance mode,
// plane, feed mode and work coordinate system. It returns "" when the
// parser state was never reported.
func (p ParserState) RestoreCommand() string {
	if !p.Known {
		return ""
	}

	words := make([]string, 0, 5)
	if p.Units != UnitsUnknown {
		words = append(words, p.Units.GCode())
	}
	for _, w := range []string{p.Distance, p.Plane, p.FeedMode, p.WCS} {
		if w != "" {
			words = append(words, w)
		}
	}

	return strings.Join(words, " ")
}

// ProbeResult is the outcome of a G38.x probing cycle.
type ProbeResult struct {
	Position Position
	Success  bool
}

// StatusUpdate carries the fields of one status report. Empty positions and
// unset Has* flags mean "not reported".
type StatusUpdate struct {
	RunState        RunState
	SubState        int
	MachinePosition Position
	WorkPosition    Position
	WorkOffset      Position
	FeedRate        float64
	SpindleSpeed    float64
	HasFeed         bool
	Overrides       Overrides
	HasOverrides    bool
	Buffer          BufferState
	HasBuffer       bool
	Pins            string
}

// State is a snapshot of everything known about the machine. It is a
// comparable value; equality means "nothing changed".
type State struct {
	Connected       bool
	RunState        RunState
	SubState        int
	AlarmCode       int
	MachinePosition Position
	WorkPosition    Position
	WorkOffset      Position
	FeedRate        float64
	SpindleSpeed    float64
	Overrides       Overrides
	Buffer          BufferState
	Pins            string
	Parser          ParserState
	Probe           ProbeResult
	Units           Units
}

// Baseline returns the disconnected state.
func Baseline(units Units) State {
	return State{
		RunState:        RunStateUnknown,
		MachinePosition: NewPosition(units),
		WorkPosition:    NewPosition(units),
		WorkOffset:      NewPosition(units),
		Overrides:       DefaultOverrides,
		Units:           units,
	}
}

// IsAlarm reports whether the machine is locked by an alarm.
func (s State) IsAlarm() bool {
	return s.RunState == RunStateAlarm
}

// String renders a short single-line summary.
func (s State) String() string {
	var sb strings.Builder
	sb.WriteString(s.RunState.String())
	if s.SubState != 0 {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(s.SubState))
	}
	if s.IsAlarm() && s.AlarmCode != 0 {
		sb.WriteString(" alarm=")
		sb.WriteString(strconv.Itoa(s.AlarmCode))
	}
	sb.WriteString(" WPos ")
	sb.WriteString(s.WorkPosition.String())

	return sb.String()
}

package machine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when a command-driven run state change is
// not permitted from the current run state.
var ErrInvalidTransition = errors.New("machine: invalid state transition")

// transitions lists the command-driven run state changes. Firmware reports
// bypass this table since they describe what the machine already did.
var transitions = map[RunState][]RunState{
	RunStateIdle:  {RunStateRun, RunStateAlarm, RunStateCheck, RunStateHome},
	RunStateRun:   {RunStateHold, RunStateAlarm},
	RunStateJog:   {RunStateHold},
	RunStateHold:  {RunStateRun},
	RunStateDoor:  {RunStateRun},
	RunStateAlarm: {RunStateIdle},
	RunStateCheck: {RunStateIdle},
}

// CanTransition reports whether a command may move the machine from one run
// state to another.
func CanTransition(from, to RunState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

// Change describes one tracker update.
type Change struct {
	Prev State
	Curr State
}

// RunStateChanged reports whether the update moved the run state.
func (c Change) RunStateChanged() bool {
	return c.Prev.RunState != c.Curr.RunState
}

// Tracker owns a State and applies updates to it under a mutex.
// Every update returns the Change and whether anything changed; the tracker
// itself never notifies anybody.
type Tracker struct {
	mu    sync.Mutex
	state State
	units Units
}

// NewTracker creates a tracker in the disconnected baseline.
func NewTracker(units Units) *Tracker {
	if units == UnitsUnknown {
		units = UnitsMM
	}

	return &Tracker{state: Baseline(units), units: units}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Units returns the units the tracker stores positions in.
func (t *Tracker) Units() Units {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.units
}

// update runs fn on a copy of the state and commits it.
func (t *Tracker) update(fn func(s *State)) (Change, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.state
	next := prev
	fn(&next)
	next.WorkPosition = next.MachinePosition.Sub(next.WorkOffset)
	t.state = next

	return Change{Prev: prev, Curr: next}, prev != next
}

// MarkConnected moves from the baseline to a connected session reporting in units.
func (t *Tracker) MarkConnected(units Units) (Change, bool) {
	t.mu.Lock()
	if units != UnitsUnknown {
		t.units = units
	}
	units = t.units
	t.mu.Unlock()

	return t.update(func(s *State) {
		*s = Baseline(units)
		s.Connected = true
	})
}

// Reset returns to the disconnected baseline.
func (t *Tracker) Reset() (Change, bool) {
	t.mu.Lock()
	units := t.units
	t.mu.Unlock()

	return t.update(func(s *State) {
		*s = Baseline(units)
	})
}

// ApplyStatus folds a firmware status report into the state.
func (t *Tracker) ApplyStatus(u StatusUpdate) (Change, bool) {
	return t.update(func(s *State) {
		if u.RunState != RunStateUnknown {
			s.RunState = u.RunState
			s.SubState = u.SubState
		}
		if s.RunState != RunStateAlarm {
			s.AlarmCode = 0
		}

		if !u.WorkOffset.IsEmpty() {
			s.WorkOffset = s.WorkOffset.Merge(u.WorkOffset)
		}
		switch {
		case !u.MachinePosition.IsEmpty():
			s.MachinePosition = s.MachinePosition.Merge(u.MachinePosition)
		case !u.WorkPosition.IsEmpty():
			wpos := u.WorkPosition.ConvertTo(s.Units)
			s.MachinePosition = s.MachinePosition.Merge(wpos.Add(s.WorkOffset))
		}

		if u.HasFeed {
			s.FeedRate = u.FeedRate
			s.SpindleSpeed = u.SpindleSpeed
		}
		if u.HasOverrides {
			s.Overrides = u.Overrides
		}
		if u.HasBuffer {
			s.Buffer = u.Buffer
		}
		s.Pins = u.Pins
	})
}

// ApplyAlarm records an ALARM:n line.
func (t *Tracker) ApplyAlarm(code int) (Change, bool) {
	return t.update(func(s *State) {
		s.RunState = RunStateAlarm
		s.SubState = 0
		s.AlarmCode = code
	})
}

// ApplyReset records the firmware's reboot banner after a soft reset. The
// modal state returns to power-on defaults, so the parser state is forgotten.
func (t *Tracker) ApplyReset() (Change, bool) {
	return t.update(func(s *State) {
		s.RunState = RunStateIdle
		s.SubState = 0
		s.AlarmCode = 0
		s.Overrides = DefaultOverrides
		s.Parser = ParserState{}
	})
}

// ApplyParserState records a $G report.
func (t *Tracker) ApplyParserState(p ParserState) (Change, bool) {
	p.Known = true

	return t.update(func(s *State) {
		s.Parser = p
	})
}

// ApplyProbe records a [PRB:...] report.
func (t *Tracker) ApplyProbe(r ProbeResult) (Change, bool) {
	return t.update(func(s *State) {
		r.Position = r.Position.ConvertTo(s.Units)
		s.Probe = r
	})
}

// Transition applies a command-driven run state change. Staying in the
// current state is always allowed and reports no change.
func (t *Tracker) Transition(to RunState) (Change, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.state
	if prev.RunState == to {
		return Change{Prev: prev, Curr: prev}, nil
	}
	if !CanTransition(prev.RunState, to) {
		return Change{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.RunState, to)
	}

	next := prev
	next.RunState = to
	next.SubState = 0
	if to != RunStateAlarm {
		next.AlarmCode = 0
	}
	t.state = next

	return Change{Prev: prev, Curr: next}, nil
}

package grblsim

import (
	"fmt"
	"math"
	"strings"

	"github.com/256dpi/gcode"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/machine"
)

const mmPerInch = 25.4

type modalState struct {
	motion   string
	wcs      string
	plane    string
	inches   bool
	relative bool
	feedMode string
	spindle  string
	coolant  string
	tool     int
	feed     float64
	speed    float64
}

func defaultModal() modalState {
	return modalState{
		motion:   "G0",
		wcs:      "G54",
		plane:    "G17",
		feedMode: "G94",
		spindle:  "M5",
		coolant:  "M9",
	}
}

func (m modalState) report() string {
	units, distance := "G21", "G90"
	if m.inches {
		units = "G20"
	}
	if m.relative {
		distance = "G91"
	}

	return fmt.Sprintf("[GC:%s %s %s %s %s %s %s %s T%d F%s S%s]",
		m.motion, m.wcs, m.plane, units, distance, m.feedMode, m.spindle, m.coolant,
		m.tool, command.FormatNumber(m.feed), command.FormatNumber(m.speed))
}

func (s *Sim) realtimeLocked(c byte) {
	switch c {
	case '?':
		s.emitLocked(s.statusLocked())
	case '!':
		switch s.state {
		case machine.RunStateRun:
			s.state, s.subState = machine.RunStateHold, 0
		case machine.RunStateJog:
			s.state = machine.RunStateIdle
		}
	case '~':
		if s.state == machine.RunStateHold || s.state == machine.RunStateDoor {
			// motion completes instantly
			s.state, s.subState = machine.RunStateIdle, 0
		}
	case 0x18:
		alarm := s.state == machine.RunStateAlarm
		s.resetLocked()
		if alarm {
			s.state = machine.RunStateAlarm
		}
		s.emitLocked(s.banner)
		if alarm {
			s.emitLocked("[MSG:'$H'|'$X' to unlock]")
		}
	case 0x84:
		s.state, s.subState = machine.RunStateDoor, 0
	case 0x85:
		if s.state == machine.RunStateJog {
			s.state = machine.RunStateIdle
		}
	case 0x83:
		if s.hal {
			s.emitLocked(s.modal.report())
		}
	case 0x90:
		s.ov.Feed = 100
	case 0x91:
		s.ov.Feed = clampOverride(s.ov.Feed+10, 10, 200)
	case 0x92:
		s.ov.Feed = clampOverride(s.ov.Feed-10, 10, 200)
	case 0x93:
		s.ov.Feed = clampOverride(s.ov.Feed+1, 10, 200)
	case 0x94:
		s.ov.Feed = clampOverride(s.ov.Feed-1, 10, 200)
	case 0x95:
		s.ov.Rapid = 100
	case 0x96:
		s.ov.Rapid = 50
	case 0x97:
		s.ov.Rapid = 25
	case 0x99:
		s.ov.Spindle = 100
	case 0x9A:
		s.ov.Spindle = clampOverride(s.ov.Spindle+10, 10, 200)
	case 0x9B:
		s.ov.Spindle = clampOverride(s.ov.Spindle-10, 10, 200)
	case 0x9C:
		s.ov.Spindle = clampOverride(s.ov.Spindle+1, 10, 200)
	case 0x9D:
		s.ov.Spindle = clampOverride(s.ov.Spindle-1, 10, 200)
	}
}

func clampOverride(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func (s *Sim) executeLocked(line string) {
	size := len(line) + 1
	text := strings.TrimSpace(line)

	if strings.HasPrefix(text, "$") {
		s.replyLocked(s.systemLocked(text), size)
		return
	}
	if text == "" {
		s.replyLocked("ok", size)
		return
	}
	if s.state == machine.RunStateAlarm {
		s.replyLocked("error:9", size)
		return
	}

	s.replyLocked(s.gcodeLocked(text, false), size)
}

func (s *Sim) systemLocked(text string) string {
	switch {
	case text == "$X":
		if s.state == machine.RunStateAlarm {
			s.state = machine.RunStateIdle
			s.emitLocked("[MSG:Caution: Unlocked]")
		}
		return "ok"
	case text == "$H":
		s.mpos = machine.XYZ(machine.UnitsMM, 0, 0, 0)
		s.state = machine.RunStateIdle
		return "ok"
	case text == "$C":
		switch s.state {
		case machine.RunStateCheck:
			s.state = machine.RunStateIdle
			s.emitLocked("[MSG:Disabled]")
		case machine.RunStateIdle:
			s.state = machine.RunStateCheck
			s.emitLocked("[MSG:Enabled]")
		default:
			return "error:8"
		}
		return "ok"
	case text == "$G":
		s.emitLocked(s.modal.report())
		return "ok"
	case text == "$$":
		s.emitLocked("$0=10")
		s.emitLocked("$13=0")
		s.emitLocked("$110=500.000")
		return "ok"
	case text == "$I":
		s.emitLocked("[VER:1.1h.20190830:]")
		return "ok"
	case strings.HasPrefix(text, "$J="):
		if s.state == machine.RunStateAlarm {
			return "error:9"
		}
		if s.state != machine.RunStateIdle && s.state != machine.RunStateJog {
			return "error:8"
		}
		return s.gcodeLocked(text[len("$J="):], true)
	default:
		return "error:3"
	}
}

// gcodeLocked executes one block and returns the acknowledgment.
func (s *Sim) gcodeLocked(text string, jog bool) string {
	block, err := gcode.ParseLine(command.SpaceWords(text))
	if err != nil {
		return "error:2"
	}

	modal := s.modal
	var (
		target  = machine.NewPosition(machine.UnitsMM)
		motion  string
		l, p    = -1.0, -1.0
		hasAxes bool
	)

	for _, code := range block.Codes {
		switch code.Letter {
		case "G":
			switch g := code.Value; {
			case g == 0 || g == 1 || g == 2 || g == 3:
				motion = fmt.Sprintf("G%d", int(g))
			case g >= 38 && g < 39:
				motion = "G38.2"
			case g == 80:
				motion = "G80"
			case g == 4, g == 53:
			case g == 10:
				motion = "G10"
			case g == 92:
				motion = "G92"
			case g >= 43 && g < 44:
				motion = "G43.1"
			case g == 49:
				s.toolOff = 0
			case g == 17 || g == 18 || g == 19:
				modal.plane = fmt.Sprintf("G%d", int(g))
			case g == 20:
				modal.inches = true
			case g == 21:
				modal.inches = false
			case g == 90:
				modal.relative = false
			case g == 91:
				modal.relative = true
			case g == 93 || g == 94:
				modal.feedMode = fmt.Sprintf("G%d", int(g))
			case g >= 54 && g <= 59:
				modal.wcs = fmt.Sprintf("G%d", int(g))
			default:
				return "error:20"
			}
		case "M":
			switch m := int(code.Value); m {
			case 3, 4, 5:
				modal.spindle = fmt.Sprintf("M%d", m)
			case 7, 8, 9:
				modal.coolant = fmt.Sprintf("M%d", m)
			case 0, 1, 2, 30:
			default:
				return "error:20"
			}
		case "X", "Y", "Z":
			axis, _ := machine.ParseAxis(code.Letter)
			v := code.Value
			if modal.inches {
				v *= mmPerInch
			}
			target = target.With(axis, v)
			hasAxes = true
		case "F":
			modal.feed = code.Value
		case "S":
			modal.speed = code.Value
		case "T":
			modal.tool = int(code.Value)
		case "L":
			l = code.Value
		case "P":
			p = code.Value
		case "N", "I", "J", "K", "R":
		case "":
		default:
			return "error:20"
		}
	}

	if jog {
		// jog modal changes are local to the jog block
		if !hasAxes || modal.feed <= 0 {
			return "error:16"
		}
		s.mpos = s.moveTarget(target, modal.relative)
		return "ok"
	}

	if motion != "" && motion != "G10" && motion != "G92" && motion != "G43.1" {
		modal.motion = motion
	}
	s.modal = modal

	if s.state == machine.RunStateCheck {
		return "ok"
	}

	switch motion {
	case "G10":
		if l != 20 || p < 0 || !hasAxes {
			return "error:28"
		}
		s.setWorkPosition(target)
	case "G92":
		s.setWorkPosition(target)
	case "G43.1":
		s.toolOff = target.Value(machine.AxisZ)
	case "G38.2":
		if !hasAxes {
			return "error:26"
		}
		return s.probeLocked(target, modal.relative)
	case "G0", "G1", "G2", "G3":
		if hasAxes {
			s.mpos = s.moveTarget(target, modal.relative)
		}
	default:
		if hasAxes && modal.motion != "G80" && modal.motion != "G38.2" {
			s.mpos = s.moveTarget(target, modal.relative)
		}
	}

	return "ok"
}

// moveTarget resolves a programmed target to machine coordinates.
func (s *Sim) moveTarget(target machine.Position, relative bool) machine.Position {
	next := s.mpos
	for _, a := range target.Axes() {
		v := target.Value(a)
		if relative {
			next = next.With(a, s.mpos.Value(a)+v)
		} else {
			next = next.With(a, v+s.wco.Value(a))
		}
	}

	return next
}

func (s *Sim) setWorkPosition(target machine.Position) {
	for _, a := range target.Axes() {
		s.wco = s.wco.With(a, s.mpos.Value(a)-target.Value(a))
	}
}

func (s *Sim) probeLocked(target machine.Position, relative bool) string {
	end := s.moveTarget(target, relative)
	if !s.probeHits {
		s.mpos = end
		s.state = machine.RunStateAlarm
		s.emitLocked("ALARM:5")
		return "ok"
	}

	for _, a := range target.Axes() {
		from, to := s.mpos.Value(a), end.Value(a)
		if s.probeContact >= math.Min(from, to) && s.probeContact <= math.Max(from, to) {
			s.mpos = s.mpos.With(a, s.probeContact)
		} else {
			s.mpos = end
			s.state = machine.RunStateAlarm
			s.emitLocked("ALARM:5")
			return "ok"
		}
	}

	s.emitLocked("[PRB:" + coords(s.mpos) + ":1]")

	return "ok"
}


package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-gsender/machine"
)

var (
	// ErrNoAxes is returned when a builder is given a position without axes.
	ErrNoAxes = errors.New("command: no axes given")
	// ErrInvalidFeed is returned for a zero or negative feed rate.
	ErrInvalidFeed = errors.New("command: feed rate must be positive")
)

// JogLine builds a "$J=" jog line. A relative jog (G91) omits zero-distance
// axes; an absolute jog (G90) keeps every given axis.
func JogLine(p machine.Position, feed float64, absolute bool) (string, error) {
	if feed <= 0 {
		return "", ErrInvalidFeed
	}

	var sb strings.Builder
	sb.WriteString("$J=")
	sb.WriteString(unitsOf(p.Units).GCode())
	if absolute {
		sb.WriteString("G90")
	} else {
		sb.WriteString("G91")
	}

	moved := 0
	for _, a := range p.Axes() {
		v := p.Value(a)
		if !absolute && FormatNumber(v) == "0" {
			continue
		}
		sb.WriteString(a.String())
		sb.WriteString(FormatNumber(v))
		moved++
	}
	if moved == 0 {
		return "", ErrNoAxes
	}

	sb.WriteString("F")
	sb.WriteString(FormatNumber(feed))

	return sb.String(), nil
}

// ProbeLine builds a relative straight probe toward the workpiece:
// "G91 G21 G38.2 Z-10 F100".
func ProbeLine(axis machine.Axis, distance, feed float64, units machine.Units) (string, error) {
	if feed <= 0 {
		return "", ErrInvalidFeed
	}
	if !axis.Valid() {
		return "", ErrNoAxes
	}

	return fmt.Sprintf("G91 %s G38.2 %s%s F%s",
		unitsOf(units).GCode(), axis, FormatNumber(distance), FormatNumber(feed)), nil
}

// SetWorkPositionLine builds a G10 L20 line that makes the current location
// read as p in the active work coordinate system.
func SetWorkPositionLine(p machine.Position) (string, error) {
	if p.IsEmpty() {
		return "", ErrNoAxes
	}

	return unitsOf(p.Units).GCode() + " G10 L20 P0 " + axisWords(p), nil
}

// ToolOffsetLine builds a dynamic tool length offset line (G43.1).
func ToolOffsetLine(axis machine.Axis, offset float64, units machine.Units) (string, error) {
	if !axis.Valid() {
		return "", ErrNoAxes
	}

	return fmt.Sprintf("%s G43.1 %s%s", unitsOf(units).GCode(), axis, FormatNumber(offset)), nil
}

// ReturnToZeroLines builds the moves returning to the work origin: raise Z to
// the safety height when the tool is below it, travel in XY, then plunge to Z0.
func ReturnToZeroLines(work machine.Position, safetyHeight float64) []string {
	units := unitsOf(work.Units)
	lines := make([]string, 0, 3)

	if z, ok := work.Get(machine.AxisZ); ok && z < safetyHeight {
		lines = append(lines, fmt.Sprintf("%s G90 G0 Z%s", units.GCode(), FormatNumber(safetyHeight)))
	}
	lines = append(lines,
		units.GCode()+" G90 G0 X0 Y0",
		units.GCode()+" G90 G0 Z0",
	)

	return lines
}

func axisWords(p machine.Position) string {
	words := make([]string, 0, len(p.Axes()))
	for _, a := range p.Axes() {
		words = append(words, a.String()+FormatNumber(p.Value(a)))
	}

	return strings.Join(words, " ")
}

func unitsOf(u machine.Units) machine.Units {
	if u == machine.UnitsUnknown {
		return machine.UnitsMM
	}

	return u
}

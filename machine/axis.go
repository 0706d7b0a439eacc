package machine

import (
	"fmt"
	"strings"
)

// Axis identifies one motion axis.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisA
	AxisB
	AxisC

	numAxes = 6
)

var axisNames = [numAxes]string{"X", "Y", "Z", "A", "B", "C"}

// AllAxes returns every known axis in canonical order.
func AllAxes() []Axis {
	return []Axis{AxisX, AxisY, AxisZ, AxisA, AxisB, AxisC}
}

// LinearAxes returns the X, Y and Z axes.
func LinearAxes() []Axis {
	return []Axis{AxisX, AxisY, AxisZ}
}

// String returns the G-code letter of the axis.
func (a Axis) String() string {
	if int(a) < numAxes {
		return axisNames[a]
	}

	return fmt.Sprintf("Axis(%d)", a)
}

// Valid reports whether a is a known axis.
func (a Axis) Valid() bool {
	return int(a) < numAxes
}

// ParseAxis parses an axis letter, case-insensitively.
func ParseAxis(s string) (Axis, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range axisNames {
		if s == name {
			return Axis(i), nil
		}
	}

	return 0, fmt.Errorf("machine: unknown axis %q", s)
}

// Units is the length unit of a position or a command.
type Units uint8

const (
	UnitsUnknown Units = iota
	UnitsMM
	UnitsInch
)

const mmPerInch = 25.4

func (u Units) String() string {
	switch u {
	case UnitsMM:
		return "mm"
	case UnitsInch:
		return "inch"
	default:
		return "unknown"
	}
}

// GCode returns the modal G-code selecting u (G21 or G20).
func (u Units) GCode() string {
	if u == UnitsInch {
		return "G20"
	}

	return "G21"
}

// ParseUnits accepts "mm", "metric", "g21", "inch", "in", "imperial" and "g20".
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mm", "metric", "g21":
		return UnitsMM, nil
	case "inch", "in", "imperial", "g20":
		return UnitsInch, nil
	default:
		return UnitsUnknown, fmt.Errorf("machine: unknown units %q", s)
	}
}

// convert scales v from one unit to another. Unknown units are left untouched.
func convert(v float64, from, to Units) float64 {
	switch {
	case from == to, from == UnitsUnknown, to == UnitsUnknown:
		return v
	case from == UnitsInch && to == UnitsMM:
		return v * mmPerInch
	default:
		return v / mmPerInch
	}
}

package machine

import (
	"strconv"
	"strings"
)

// Position is a sparse mapping from Axis to a signed distance, tagged with
// its units. Axes that are not set are "unchanged" and are skipped by every
// operation. Position is a comparable value type.
type Position struct {
	values [numAxes]float64
	mask   uint8
	Units  Units
}

// NewPosition returns an empty position in the given units.
func NewPosition(units Units) Position {
	return Position{Units: units}
}

// XYZ returns a position with the three linear axes set.
func XYZ(units Units, x, y, z float64) Position {
	return NewPosition(units).With(AxisX, x).With(AxisY, y).With(AxisZ, z)
}

// With returns a copy of p with axis a set to v.
func (p Position) With(a Axis, v float64) Position {
	if !a.Valid() {
		return p
	}
	p.values[a] = v
	p.mask |= 1 << a

	return p
}

// Without returns a copy of p with axis a unset.
func (p Position) Without(a Axis) Position {
	if !a.Valid() {
		return p
	}
	p.values[a] = 0
	p.mask &^= 1 << a

	return p
}

// Get returns the value of axis a and whether it is set.
func (p Position) Get(a Axis) (float64, bool) {
	if !p.Has(a) {
		return 0, false
	}

	return p.values[a], true
}

// Value returns the value of axis a, or 0 when it is not set.
func (p Position) Value(a Axis) float64 {
	v, _ := p.Get(a)
	return v
}

// Has reports whether axis a is set.
func (p Position) Has(a Axis) bool {
	return a.Valid() && p.mask&(1<<a) != 0
}

// IsEmpty reports whether no axis is set.
func (p Position) IsEmpty() bool {
	return p.mask == 0
}

// Axes returns the set axes in canonical order.
func (p Position) Axes() []Axis {
	axes := make([]Axis, 0, numAxes)
	for _, a := range AllAxes() {
		if p.Has(a) {
			axes = append(axes, a)
		}
	}

	return axes
}

// ConvertTo returns p expressed in units u.
func (p Position) ConvertTo(u Units) Position {
	if p.Units == u || u == UnitsUnknown {
		return p
	}

	out := NewPosition(u)
	for _, a := range p.Axes() {
		out = out.With(a, convert(p.values[a], p.Units, u))
	}

	return out
}

// Merge overlays q onto p: every axis set in q replaces the one in p
// (last writer wins). The result keeps p's units; if p has none it adopts q's.
func (p Position) Merge(q Position) Position {
	if p.Units == UnitsUnknown {
		p.Units = q.Units
	}
	q = q.ConvertTo(p.Units)
	for _, a := range q.Axes() {
		p = p.With(a, q.values[a])
	}

	return p
}

// Sub returns p - q over the axes set in p. Axes missing in q count as zero.
func (p Position) Sub(q Position) Position {
	q = q.ConvertTo(p.Units)
	out := NewPosition(p.Units)
	for _, a := range p.Axes() {
		out = out.With(a, p.values[a]-q.Value(a))
	}

	return out
}

// Add returns p + q over the axes set in p. Axes missing in q count as zero.
func (p Position) Add(q Position) Position {
	q = q.ConvertTo(p.Units)
	out := NewPosition(p.Units)
	for _, a := range p.Axes() {
		out = out.With(a, p.values[a]+q.Value(a))
	}

	return out
}

// String renders the position as "X1.5 Y-2 (mm)".
func (p Position) String() string {
	var sb strings.Builder
	for i, a := range p.Axes() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(a.String())
		sb.WriteString(strconv.FormatFloat(p.values[a], 'f', -1, 64))
	}
	sb.WriteString(" (")
	sb.WriteString(p.Units.String())
	sb.WriteByte(')')

	return sb.String()
}

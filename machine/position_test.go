package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPositionWithGet(t *testing.T) {
	require := require.New(t)

	p := NewPosition(UnitsMM)
	require.True(p.IsEmpty())

	p = p.With(AxisX, 10).With(AxisZ, -2.5)
	require.False(p.IsEmpty())
	require.Equal([]Axis{AxisX, AxisZ}, p.Axes())

	v, ok := p.Get(AxisX)
	require.True(ok)
	require.Equal(10.0, v)

	_, ok = p.Get(AxisY)
	require.False(ok)
	require.Equal(0.0, p.Value(AxisY))

	p = p.Without(AxisX)
	require.False(p.Has(AxisX))
	require.Equal("Z-2.5 (mm)", p.String())
}

func TestPositionComparable(t *testing.T) {
	require := require.New(t)

	a := XYZ(UnitsMM, 1, 2, 3)
	b := NewPosition(UnitsMM).With(AxisZ, 3).With(AxisY, 2).With(AxisX, 1)
	require.True(a == b)
	require.False(a == b.With(AxisA, 0))
}

func TestPositionMerge(t *testing.T) {
	require := require.New(t)

	base := XYZ(UnitsMM, 1, 2, 3)
	merged := base.Merge(NewPosition(UnitsMM).With(AxisY, 20).With(AxisA, 90))
	require.Equal(1.0, merged.Value(AxisX))
	require.Equal(20.0, merged.Value(AxisY))
	require.Equal(3.0, merged.Value(AxisZ))
	require.Equal(90.0, merged.Value(AxisA))

	// unknown units adopt the overlay's units
	merged = Position{}.Merge(XYZ(UnitsInch, 1, 1, 1))
	require.Equal(UnitsInch, merged.Units)

	// overlay is converted into the receiver's units
	merged = NewPosition(UnitsMM).Merge(NewPosition(UnitsInch).With(AxisX, 1))
	require.InDelta(25.4, merged.Value(AxisX), 1e-9)
}

func TestPositionArithmetic(t *testing.T) {
	require := require.New(t)

	mpos := XYZ(UnitsMM, 10, 20, 30)
	wco := NewPosition(UnitsMM).With(AxisX, 5).With(AxisZ, 10)

	wpos := mpos.Sub(wco)
	require.Equal(XYZ(UnitsMM, 5, 20, 20), wpos)
	require.Equal(mpos, wpos.Add(wco))

	// only axes of the receiver take part
	require.Equal([]Axis{AxisX}, NewPosition(UnitsMM).With(AxisX, 1).Sub(mpos).Axes())
}

func TestPositionConvert(t *testing.T) {
	require := require.New(t)

	p := XYZ(UnitsInch, 1, 2, -0.5)
	mm := p.ConvertTo(UnitsMM)
	require.Equal(UnitsMM, mm.Units)
	require.InDelta(25.4, mm.Value(AxisX), 1e-9)
	require.InDelta(50.8, mm.Value(AxisY), 1e-9)
	require.InDelta(-12.7, mm.Value(AxisZ), 1e-9)

	back := mm.ConvertTo(UnitsInch)
	require.InDelta(1.0, back.Value(AxisX), 1e-9)
	require.Equal(p, p.ConvertTo(UnitsUnknown))
}

func TestParseAxisAndUnits(t *testing.T) {
	require := require.New(t)

	a, err := ParseAxis("z")
	require.NoError(err)
	require.Equal(AxisZ, a)

	_, err = ParseAxis("W")
	require.Error(err)

	u, err := ParseUnits("Metric")
	require.NoError(err)
	require.Equal(UnitsMM, u)
	require.Equal("G21", u.GCode())

	u, err = ParseUnits("in")
	require.NoError(err)
	require.Equal(UnitsInch, u)
	require.Equal("G20", u.GCode())

	_, err = ParseUnits("furlong")
	require.Error(err)
}

package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/arloliu/go-gsender/controller"
	"github.com/arloliu/go-gsender/machine"
)

// Theme is the color scheme of the status line.
type Theme struct {
	Primary lipgloss.Color
	Warn    lipgloss.Color
	Alarm   lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is used unless output is not a terminal.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Warn:    lipgloss.Color("#ffb000"),
	Alarm:   lipgloss.Color("#ff5f5f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	State lipgloss.Style
	Hold  lipgloss.Style
	Alarm lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Dim   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		State: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Hold:  lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
		Alarm: lipgloss.NewStyle().Bold(true).Foreground(t.Alarm),
		Label: lipgloss.NewStyle().Foreground(t.Dim),
		Value: lipgloss.NewStyle(),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// StatusLine renders machine state and stream progress on one line.
type StatusLine struct {
	Styles Styles
}

// Render renders st and p. Progress is omitted when nothing was streamed.
func (s StatusLine) Render(st machine.State, p controller.Progress) string {
	stateStyle := s.Styles.State
	switch st.RunState {
	case machine.RunStateAlarm:
		stateStyle = s.Styles.Alarm
	case machine.RunStateHold, machine.RunStateDoor:
		stateStyle = s.Styles.Hold
	}

	name := st.RunState.String()
	if st.IsAlarm() && st.AlarmCode != 0 {
		name = fmt.Sprintf("%s:%d", name, st.AlarmCode)
	} else if st.SubState != 0 {
		name = fmt.Sprintf("%s:%d", name, st.SubState)
	}

	parts := []string{
		stateStyle.Render(name),
		s.field("WPos", formatPosition(st.WorkPosition)),
		s.field("F", fmt.Sprintf("%.0f", st.FeedRate)),
		s.field("S", fmt.Sprintf("%.0f", st.SpindleSpeed)),
		s.field("Ov", fmt.Sprintf("%d/%d/%d", st.Overrides.Feed, st.Overrides.Rapid, st.Overrides.Spindle)),
	}
	if p.Total > 0 {
		parts = append(parts, s.field("Lines", fmt.Sprintf("%d/%d", p.Acknowledged+p.Failed, p.Total)))
		if p.Failed > 0 {
			parts = append(parts, s.Styles.Alarm.Render(fmt.Sprintf("%d failed", p.Failed)))
		}
		parts = append(parts, s.field("Buf", fmt.Sprintf("%d/%d", p.InFlightBytes, p.Capacity)))
	}

	return strings.Join(parts, s.Styles.Dim.Render(" | "))
}

func (s StatusLine) field(label, value string) string {
	return s.Styles.Label.Render(label+" ") + s.Styles.Value.Render(value)
}

func formatPosition(p machine.Position) string {
	axes := machine.LinearAxes()
	vals := make([]string, 0, len(axes))
	for _, a := range axes {
		vals = append(vals, fmt.Sprintf("%s%.3f", a, p.Value(a)))
	}

	return strings.Join(vals, " ")
}

package controller

import (
	"fmt"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/firmware"
	"github.com/arloliu/go-gsender/machine"
)

// SendOverrideCommand writes an override byte immediately. Overrides are
// rejected while an alarm is active.
func (c *Controller) SendOverrideCommand(o firmware.Override) error {
	s, err := c.connected()
	if err != nil {
		return err
	}
	if err := c.checkNotAlarm(); err != nil {
		return err
	}

	b, err := s.dialect.Override(o)
	if err != nil {
		return err
	}

	s.logger.Debug("send override", "override", o)

	return c.writeRaw(s, b, o.String())
}

// SendRealtimeCommand writes a real-time byte immediately. During an alarm
// only the status query and the soft reset are accepted.
func (c *Controller) SendRealtimeCommand(cmd firmware.RealtimeCommand) error {
	s, err := c.connected()
	if err != nil {
		return err
	}
	if cmd != firmware.RealtimeStatusQuery && cmd != firmware.RealtimeSoftReset {
		if err := c.checkNotAlarm(); err != nil {
			return err
		}
	}

	return c.writeRealtime(s, cmd)
}

// QueryStatus asks the firmware for a status report.
func (c *Controller) QueryStatus() error {
	return c.SendRealtimeCommand(firmware.RealtimeStatusQuery)
}

// RequestParserState asks the firmware for its modal state, with the
// real-time query when the dialect has one and "$G" otherwise.
func (c *Controller) RequestParserState() error {
	s, err := c.connected()
	if err != nil {
		return err
	}

	if s.dialect.SupportsRealtimeParserState() {
		return c.writeRealtime(s, firmware.RealtimeParserState)
	}

	return c.sendLines(s, false, nil, s.dialect.SystemCommand(firmware.SystemParserState))
}

// Jog moves by the given distances at feed, in the units of p.
func (c *Controller) Jog(p machine.Position, feed float64) error {
	return c.jog(p, feed, false)
}

// JogTo moves to the given work coordinates at feed, in the units of p.
func (c *Controller) JogTo(p machine.Position, feed float64) error {
	return c.jog(p, feed, true)
}

func (c *Controller) jog(p machine.Position, feed float64, absolute bool) error {
	s, err := c.connected()
	if err != nil {
		return err
	}

	if err := c.checkNoResetPending(s); err != nil {
		return err
	}

	switch st := c.tracker.Snapshot(); st.RunState {
	case machine.RunStateIdle, machine.RunStateRun, machine.RunStateJog:
	case machine.RunStateAlarm:
		return fmt.Errorf("%w: ALARM:%d", ErrAlarmActive, st.AlarmCode)
	default:
		return fmt.Errorf("%w: cannot jog in %s", ErrInvalidState, st.RunState)
	}

	line, err := command.JogLine(p, feed, absolute)
	if err != nil {
		return err
	}

	if err := c.sendLines(s, false, nil, line); err != nil {
		return err
	}

	if c.tracker.Snapshot().RunState == machine.RunStateIdle {
		_ = c.transition(machine.RunStateRun)
	}

	return nil
}

// CancelJog stops a running jog and flushes the jogs queued behind it.
func (c *Controller) CancelJog() error {
	return c.SendRealtimeCommand(firmware.RealtimeJogCancel)
}

// SetWorkPositionUsingExpression sets the work coordinate of axis to the
// value of expr. "#" stands for the current work coordinate, and an
// expression starting with "*" or "/" applies to it, so "# / 2" and "/ 2"
// both halve it. Nothing is sent when the expression is invalid.
func (c *Controller) SetWorkPositionUsingExpression(axis machine.Axis, expr string) error {
	if _, err := c.connected(); err != nil {
		return err
	}
	if !axis.Valid() {
		return fmt.Errorf("%w: invalid axis", ErrInvalidState)
	}

	st := c.tracker.Snapshot()
	v, err := command.Evaluate(expr, st.WorkPosition.Value(axis))
	if err != nil {
		return err
	}

	return c.SetWorkPosition(machine.NewPosition(st.Units).With(axis, v))
}

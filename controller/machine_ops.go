package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/firmware"
	"github.com/arloliu/go-gsender/internal/pool"
	"github.com/arloliu/go-gsender/machine"
)

type probeOutcome struct {
	result machine.ProbeResult
	err    error
}

// SendGcodeCommand sends one line outside of the program stream. A motion
// line moves an idle machine to Run until the next status report.
func (c *Controller) SendGcodeCommand(text string) error {
	s, err := c.connected()
	if err != nil {
		return err
	}

	cmd := command.New(text)
	if err := c.submit(s, newLineRequest(false, nil, cmd)); err != nil {
		return err
	}
	c.markMotion(cmd)

	return nil
}

// SendGcodeCommandRestoringState sends one line between a parser state save
// and a restore of units, distance mode, plane, feed mode and coordinate
// system, so that modal words in text do not leak into the program.
func (c *Controller) SendGcodeCommandRestoringState(text string) error {
	s, err := c.connected()
	if err != nil {
		return err
	}

	cmd := command.New(text)
	if err := c.submit(s, newLineRequest(true, nil, cmd)); err != nil {
		return err
	}
	c.markMotion(cmd)

	return nil
}

// SendCommand sends a prepared command outside of the program stream. An ID
// is assigned when cmd has none.
func (c *Controller) SendCommand(cmd *command.Command) error {
	s, err := c.connected()
	if err != nil {
		return err
	}
	if cmd == nil {
		return errors.New("controller: command is nil")
	}

	if err := c.submit(s, newLineRequest(cmd.RestoreParserState, nil, cmd)); err != nil {
		return err
	}
	c.markMotion(cmd)

	return nil
}

// markMotion moves an idle machine to Run when one of cmds moves it.
func (c *Controller) markMotion(cmds ...*command.Command) {
	moves := slices.ContainsFunc(cmds, func(cmd *command.Command) bool {
		return cmd.Metadata.Motion
	})
	if moves && c.tracker.Snapshot().RunState == machine.RunStateIdle {
		_ = c.transition(machine.RunStateRun)
	}
}

// gcodeSession returns the session for an operation emitting G-code, which
// is refused during an alarm.
func (c *Controller) gcodeSession() (*session, error) {
	s, err := c.connected()
	if err != nil {
		return nil, err
	}
	if err := c.checkNotAlarm(); err != nil {
		return nil, err
	}

	return s, nil
}

// SetWorkPosition makes the current location read as p in the active work
// coordinate system. Axes missing from p are left alone.
func (c *Controller) SetWorkPosition(p machine.Position) error {
	s, err := c.gcodeSession()
	if err != nil {
		return err
	}

	line, err := command.SetWorkPositionLine(p)
	if err != nil {
		return err
	}

	return c.sendLines(s, true, nil, line)
}

// ResetCoordinateToZero zeroes the work coordinate of one axis.
func (c *Controller) ResetCoordinateToZero(axis machine.Axis) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: invalid axis", ErrInvalidState)
	}

	return c.SetWorkPosition(machine.NewPosition(c.tracker.Units()).With(axis, 0))
}

// ResetCoordinatesToZero zeroes the X, Y and Z work coordinates.
func (c *Controller) ResetCoordinatesToZero() error {
	return c.SetWorkPosition(machine.XYZ(c.tracker.Units(), 0, 0, 0))
}

// ReturnToZero moves to the work origin, raising Z to the safety height
// first when the tool is below it.
func (c *Controller) ReturnToZero() error {
	s, err := c.gcodeSession()
	if err != nil {
		return err
	}
	if c.streaming.Load() {
		return ErrAlreadyStreaming
	}
	if err := c.checkNoResetPending(s); err != nil {
		return err
	}

	lines := command.ReturnToZeroLines(c.tracker.Snapshot().WorkPosition, s.settings.SafetyHeight())
	cmds := make([]*command.Command, 0, len(lines))
	for _, line := range lines {
		cmds = append(cmds, command.New(line))
	}
	if err := c.submit(s, newLineRequest(true, nil, cmds...)); err != nil {
		return err
	}
	c.markMotion(cmds...)

	return nil
}

// OffsetTool applies a dynamic tool length offset on axis.
func (c *Controller) OffsetTool(axis machine.Axis, offset float64, units machine.Units) error {
	s, err := c.gcodeSession()
	if err != nil {
		return err
	}

	line, err := command.ToolOffsetLine(axis, offset, units)
	if err != nil {
		return err
	}

	return c.sendLines(s, true, nil, line)
}

// PerformHomingCycle runs the homing cycle.
func (c *Controller) PerformHomingCycle() error {
	s, err := c.gcodeSession()
	if err != nil {
		return err
	}
	if c.streaming.Load() {
		return ErrAlreadyStreaming
	}
	if err := c.checkNoResetPending(s); err != nil {
		return err
	}

	if err := c.sendLines(s, false, nil, s.dialect.SystemCommand(firmware.SystemHoming)); err != nil {
		return err
	}

	if c.tracker.Snapshot().RunState == machine.RunStateIdle {
		_ = c.transition(machine.RunStateHome)
	}

	return nil
}

// KillAlarmLock clears the alarm lock. It is accepted in every state.
func (c *Controller) KillAlarmLock() error {
	s, err := c.connected()
	if err != nil {
		return err
	}

	return c.sendLines(s, false, func(ackErr error) {
		if ackErr == nil && c.tracker.Snapshot().IsAlarm() {
			_ = c.transition(machine.RunStateIdle)
		}
	}, s.dialect.SystemCommand(firmware.SystemUnlock))
}

// ToggleCheckMode switches the G-code check mode on or off.
func (c *Controller) ToggleCheckMode() error {
	s, err := c.gcodeSession()
	if err != nil {
		return err
	}

	return c.sendLines(s, false, func(ackErr error) {
		if ackErr != nil {
			return
		}
		switch c.tracker.Snapshot().RunState {
		case machine.RunStateIdle:
			_ = c.transition(machine.RunStateCheck)
		case machine.RunStateCheck:
			_ = c.transition(machine.RunStateIdle)
		}
	}, s.dialect.SystemCommand(firmware.SystemCheckMode))
}

// IssueSoftReset drops the queued program and resets the firmware. It is
// accepted in every state. Motion is refused until the firmware banner
// confirms the reset.
func (c *Controller) IssueSoftReset() error {
	s, err := c.connected()
	if err != nil {
		return err
	}

	if dropped := c.stopStream(); dropped > 0 {
		s.logger.Info("soft reset drops queued commands", "dropped", dropped)
	}
	s.resetPending.Store(true)

	return c.writeRealtime(s, firmware.RealtimeSoftReset)
}

// Probe runs a straight probe along axis for distance at feedRate and waits
// for the probe report. The parser state is restored afterwards.
func (c *Controller) Probe(
	ctx context.Context,
	axis machine.Axis,
	feedRate float64,
	distance float64,
	units machine.Units,
) (machine.ProbeResult, error) {
	s, err := c.gcodeSession()
	if err != nil {
		return machine.ProbeResult{}, err
	}
	if c.streaming.Load() {
		return machine.ProbeResult{}, ErrAlreadyStreaming
	}
	if err := c.checkNoResetPending(s); err != nil {
		return machine.ProbeResult{}, err
	}

	line, err := command.ProbeLine(axis, distance, feedRate, units)
	if err != nil {
		return machine.ProbeResult{}, err
	}

	id := c.nextID.Add(1)
	outcome := make(chan probeOutcome, 1)
	c.probes.Store(id, outcome)
	defer c.probes.Delete(id)

	cmd := command.New(line)
	if err := c.submit(s, newLineRequest(true, nil, cmd)); err != nil {
		return machine.ProbeResult{}, err
	}
	c.markMotion(cmd)

	timeout := s.settings.ProbeTimeout()
	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case out := <-outcome:
		return out.result, out.err
	case <-timer.C:
		s.logger.Warn("probe timeout", "timeout", timeout)
		return machine.ProbeResult{}, fmt.Errorf("%w: %v", ErrProbeTimeout, timeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return machine.ProbeResult{}, fmt.Errorf("%w: %w", ErrProbeTimeout, ctx.Err())
		}

		return machine.ProbeResult{}, ctx.Err()
	case <-s.ctx.Done():
		return machine.ProbeResult{}, ErrConnectionLost
	}
}

// deliverProbe hands a probe report to every waiting Probe call.
func (c *Controller) deliverProbe(out probeOutcome) {
	c.probes.Range(func(id uint64, ch chan probeOutcome) bool {
		if _, ok := c.probes.LoadAndDelete(id); ok {
			select {
			case ch <- out:
			default:
			}
		}

		return true
	})
}

// failProbes fails every waiting Probe call with err.
func (c *Controller) failProbes(err error) {
	c.deliverProbe(probeOutcome{err: err})
}

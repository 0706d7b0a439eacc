package controller

import (
	"context"
	"fmt"

	"github.com/arloliu/go-gsender/firmware"
	"github.com/arloliu/go-gsender/machine"
)

// readerTask reads and handles one line. It never writes to the transport.
func (c *Controller) readerTask(ctx context.Context, s *session) bool {
	line, err := s.transport.ReadLine()
	if err != nil {
		if ctx.Err() == nil && !s.closing.Load() {
			c.teardown(s, fmt.Errorf("%w: %w", ErrConnectionLost, err))
		}

		return false
	}

	c.handleLine(s, line)

	return true
}

func (c *Controller) handleLine(s *session, line string) {
	c.metrics.incLineRecvCount()
	if s.settings.Verbose() {
		c.DispatchMessage(MessageVerbose, "<< "+line)
	}

	resp, err := s.dialect.ParseLine(line, s.units)
	if err != nil {
		c.metrics.incMalformedCount()
		s.logger.Warn("malformed firmware line", "line", line, "error", err)
		c.DispatchMessage(MessageError, err.Error())

		return
	}

	switch resp.Kind {
	case firmware.ResponseNone:
	case firmware.ResponseAck, firmware.ResponseError:
		c.handleAck(s, resp)
	case firmware.ResponseStatus:
		c.handleStatus(resp.Status)
	case firmware.ResponseWelcome:
		c.handleWelcome(s, resp)
	case firmware.ResponseAlarm:
		c.handleAlarm(s, resp.Code)
	case firmware.ResponseProbe:
		c.handleProbe(resp.Probe)
	case firmware.ResponseParserState:
		if change, changed := c.tracker.ApplyParserState(resp.Parser); changed {
			c.notifyState(change)
		}
	case firmware.ResponseMessage:
		c.DispatchMessage(MessageFirmware, resp.Message)
	case firmware.ResponseSetting:
		c.DispatchMessage(MessageFirmware, resp.Raw)
	}
}

// handleAck matches an "ok" or "error:n" with the oldest line in flight.
func (c *Controller) handleAck(s *session, resp firmware.Response) {
	e, err := c.disp.acknowledge()
	if err != nil {
		c.metrics.incUnexpectedAckCount()
		s.logger.Warn("unexpected acknowledgment", "line", resp.Raw, "error", err)

		return
	}
	c.metrics.setInFlightBytes(c.disp.inFlightBytes())

	var ackErr error
	if resp.Kind == firmware.ResponseAck {
		c.metrics.incAckCount()
		e.cmd.MarkAcknowledged()
	} else {
		c.metrics.incErrorAckCount()
		e.cmd.MarkFailed(resp.Code)
		desc := s.dialect.ErrorDescription(resp.Code)
		ackErr = fmt.Errorf("controller: error:%d (%s) on %q", resp.Code, desc, e.cmd.Text)
		s.logger.Warn("command failed", "line", e.cmd.Text, "code", resp.Code, "description", desc)
		c.DispatchMessage(MessageError, ackErr.Error())
	}

	if e.program {
		c.ackProgramLine(s, e, ackErr)
	}

	if e.restore {
		if line := c.tracker.Snapshot().Parser.RestoreCommand(); line != "" {
			s.pushRestore(line)
		}
	}
	if e.onAck != nil {
		e.onAck(ackErr)
	}

	s.wakeSender()
	c.checkStreamComplete()
}

func (c *Controller) ackProgramLine(s *session, e *inflight, ackErr error) {
	if _, ok := c.queue.DequeueOnAck(e.cmd.ID); !ok {
		// the queue was cleared by Cancel or an alarm
		return
	}
	c.metrics.setQueueLength(c.queue.Len())

	if ackErr == nil {
		c.progress.acknowledged.Add(1)
		return
	}

	c.progress.failed.Add(1)
	if s.settings.PauseOnError() && c.streaming.Load() {
		s.logger.Info("pausing stream on error", "line", e.cmd.Text)
		c.disp.pause()
		if err := c.writeRealtime(s, firmware.RealtimeFeedHold); err == nil {
			_ = c.transition(machine.RunStateHold)
		}
	}
}

// checkStreamComplete ends the stream once every program line is acknowledged.
func (c *Controller) checkStreamComplete() {
	c.streamMu.Lock()
	if !c.streaming.Load() || c.queue.Len() > 0 {
		c.streamMu.Unlock()
		return
	}
	c.streaming.Store(false)
	c.queue.Clear()
	c.streamMu.Unlock()

	p := c.Progress()
	c.GetLogger().Info("stream completed", "total", p.Total, "failed", p.Failed)
	c.DispatchMessage(MessageInfo, fmt.Sprintf("stream completed: %d commands, %d errors", p.Total, p.Failed))
}

func (c *Controller) handleStatus(u machine.StatusUpdate) {
	c.metrics.incStatusReportCount()
	if change, changed := c.tracker.ApplyStatus(u); changed {
		c.notifyState(change)
	}

	if c.stateMgr.State().IsConnecting() {
		_ = c.stateMgr.ToConnected()
	}
}

// handleWelcome handles the banner printed at power-on and after a soft
// reset. The firmware discarded its buffer, so everything in flight is gone.
func (c *Controller) handleWelcome(s *session, resp firmware.Response) {
	s.logger.Info("firmware ready", "version", resp.Version)
	s.resetPending.Store(false)

	for _, e := range c.disp.reset() {
		e.cmd.MarkFailed(0)
		if e.onAck != nil {
			e.onAck(ErrFlushed)
		}
	}
	c.metrics.setInFlightBytes(0)

	dropped := c.stopStream()

	if change, changed := c.tracker.ApplyReset(); changed {
		c.notifyState(change)
	}

	if c.stateMgr.State().IsConnecting() {
		_ = c.stateMgr.ToConnected()
	}

	c.DispatchMessage(MessageFirmware, resp.Raw)
	if dropped > 0 {
		c.DispatchMessage(MessageInfo, fmt.Sprintf("stream aborted by reset, %d commands dropped", dropped))
	}

	s.wakeSender()
}

func (c *Controller) handleAlarm(s *session, code int) {
	c.metrics.incAlarmCount()
	desc := s.dialect.AlarmDescription(code)
	s.logger.Warn("alarm", "code", code, "description", desc)

	if change, changed := c.tracker.ApplyAlarm(code); changed {
		c.notifyState(change)
	}

	dropped := c.stopStream()
	c.failProbes(fmt.Errorf("%w: ALARM:%d (%s)", ErrAlarmActive, code, desc))

	c.DispatchMessage(MessageError, fmt.Sprintf("ALARM:%d (%s)", code, desc))
	if dropped > 0 {
		c.DispatchMessage(MessageInfo, fmt.Sprintf("stream aborted by alarm, %d commands dropped", dropped))
	}
}

func (c *Controller) handleProbe(r machine.ProbeResult) {
	if change, changed := c.tracker.ApplyProbe(r); changed {
		c.notifyState(change)
	}

	c.deliverProbe(probeOutcome{result: c.tracker.Snapshot().Probe})
}

// stopStream ends a running stream and drops its queued commands.
func (c *Controller) stopStream() int {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	c.streaming.Store(false)
	n := c.queue.Clear()
	c.metrics.setQueueLength(0)

	return n
}

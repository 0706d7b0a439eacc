package controller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/firmware"
	"github.com/arloliu/go-gsender/internal/pool"
)

// lineRequest hands ad-hoc lines to the sender. The sender writes them as
// budget frees up and reports the write result on sentChan once the last
// line is on the wire.
type lineRequest struct {
	cmds []*command.Command
	// restore saves the parser state before the first line and restores it
	// after the last line is acknowledged.
	restore bool
	onAck   func(err error)

	// entries and next are owned by the sender.
	entries   []*inflight
	next      int
	abandoned atomic.Bool
	sentChan  chan error
}

func newLineRequest(restore bool, onAck func(err error), cmds ...*command.Command) *lineRequest {
	return &lineRequest{
		cmds:     cmds,
		restore:  restore,
		onAck:    onAck,
		sentChan: make(chan error, 1),
	}
}

// prepare builds the dispatcher entries of req, the parser state save line
// first when req restores the state.
func (c *Controller) prepare(s *session, req *lineRequest) {
	req.entries = make([]*inflight, 0, len(req.cmds)+1)
	if req.restore {
		save := command.New(s.dialect.SystemCommand(firmware.SystemParserState))
		save.ID = c.nextID.Add(1)
		req.entries = append(req.entries, &inflight{cmd: save})
	}

	last := len(req.cmds) - 1
	for i, cmd := range req.cmds {
		e := &inflight{cmd: cmd}
		if i == last {
			e.restore = req.restore
			e.onAck = req.onAck
		}
		req.entries = append(req.entries, e)
	}
}

// submit validates the lines of req, hands them to the sender and waits
// until they are written, the send timeout expires or the session closes.
// The timeout covers the wait for buffer space; a request abandoned before
// its first line is written is dropped by the sender.
func (c *Controller) submit(s *session, req *lineRequest) error {
	for _, cmd := range req.cmds {
		if cmd.IsEmpty() {
			return errors.New("controller: empty command")
		}
		if cmd.Size() > s.capacity {
			return fmt.Errorf("%w: %d bytes > %d: %q", ErrCommandTooLarge, cmd.Size(), s.capacity, cmd.Text)
		}
		if cmd.ID == 0 {
			cmd.ID = c.nextID.Add(1)
		}
	}
	c.prepare(s, req)

	timeout := s.settings.SendTimeout()
	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case s.requests <- req:
	case <-timer.C:
		return fmt.Errorf("%w: %v", ErrSendTimeout, timeout)
	case <-s.ctx.Done():
		return ErrConnectionLost
	}

	select {
	case err := <-req.sentChan:
		return err
	case <-timer.C:
		req.abandoned.Store(true)
		return fmt.Errorf("%w: %v", ErrSendTimeout, timeout)
	case <-s.ctx.Done():
		// a failed write reports before it closes the session
		select {
		case err := <-req.sentChan:
			return err
		default:
		}

		return ErrConnectionLost
	}
}

// sendLines submits ad-hoc lines of text.
func (c *Controller) sendLines(s *session, restore bool, onAck func(err error), lines ...string) error {
	cmds := make([]*command.Command, 0, len(lines))
	for _, line := range lines {
		cmds = append(cmds, command.New(line))
	}

	return c.submit(s, newLineRequest(restore, onAck, cmds...))
}

// senderTask is one iteration of the only goroutine writing lines. Every
// line is charged against the firmware buffer. Restore lines go first, then
// ad-hoc requests; program lines wait until neither is blocked on budget.
func (c *Controller) senderTask(ctx context.Context, s *session) bool {
	blocked, err := c.writeAdHoc(s)
	if err != nil {
		c.closeAsync(s, err)
		return false
	}

	if !blocked {
		if err := c.fillBuffer(s); err != nil {
			c.closeAsync(s, err)
			return false
		}
	}

	requests := s.requests
	if s.active != nil {
		requests = nil
	}

	select {
	case <-ctx.Done():
		return false
	case req := <-requests:
		s.active = req
		return true
	case <-s.wake:
		return true
	}
}

// writeAdHoc writes pending restore lines and ad-hoc requests while they fit.
// It reports whether a line is left waiting for budget.
func (c *Controller) writeAdHoc(s *session) (bool, error) {
	for {
		cmd := s.peekRestore()
		if cmd == nil {
			break
		}
		if cmd.Size() > s.capacity {
			s.popRestore()
			s.logger.Warn("parser state restore line exceeds the buffer", "line", cmd.Text, "capacity", s.capacity)
			c.DispatchMessage(MessageError, fmt.Sprintf("cannot restore parser state, %q exceeds %d bytes", cmd.Text, s.capacity))

			continue
		}
		if cmd.ID == 0 {
			cmd.ID = c.nextID.Add(1)
		}
		if !c.admit(&inflight{cmd: cmd}) {
			return true, nil
		}
		s.popRestore()
		if err := c.writeCommand(s, cmd); err != nil {
			return true, err
		}
	}

	for {
		if s.active == nil {
			select {
			case req := <-s.requests:
				s.active = req
			default:
				return false, nil
			}
		}

		req := s.active
		if req.next == 0 && req.abandoned.Load() {
			s.active = nil
			continue
		}

		for req.next < len(req.entries) {
			e := req.entries[req.next]
			if !c.admit(e) {
				return true, nil
			}
			req.next++
			if err := c.writeCommand(s, e.cmd); err != nil {
				s.active = nil
				req.sentChan <- err

				return true, err
			}
		}

		s.active = nil
		req.sentChan <- nil
	}
}

// admit charges e against the firmware buffer.
func (c *Controller) admit(e *inflight) bool {
	if !c.disp.admit(e) {
		return false
	}
	c.metrics.setInFlightBytes(c.disp.inFlightBytes())

	return true
}

// fillBuffer writes program lines while the dispatcher admits them.
func (c *Controller) fillBuffer(s *session) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	for c.streaming.Load() && !c.disp.isPaused() {
		cmd := c.queue.PeekNext()
		if cmd == nil {
			return nil
		}
		if !c.admit(&inflight{cmd: cmd, program: true}) {
			return nil
		}
		c.queue.MarkSent(cmd)
		if err := c.writeCommand(s, cmd); err != nil {
			return err
		}
		c.progress.sent.Add(1)
	}

	return nil
}

// writeCommand writes one line. The command is marked sent first, since its
// acknowledgment may be handled before WriteLine returns.
func (c *Controller) writeCommand(s *session, cmd *command.Command) error {
	cmd.MarkSent()
	if err := s.transport.WriteLine(cmd.Text); err != nil {
		s.logger.Error("failed to write line", "line", cmd.Text, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	c.metrics.incLineSendCount()
	if s.settings.Verbose() {
		c.DispatchMessage(MessageVerbose, ">> "+cmd.Text)
	}

	return nil
}

// writeRealtime writes a real-time byte immediately. A write failure closes
// the session.
func (c *Controller) writeRealtime(s *session, cmd firmware.RealtimeCommand) error {
	b, err := s.dialect.Realtime(cmd)
	if err != nil {
		return err
	}

	return c.writeRaw(s, b, cmd.String())
}

func (c *Controller) writeRaw(s *session, b byte, name string) error {
	if s.closing.Load() {
		return ErrNotConnected
	}

	if err := s.transport.WriteRaw([]byte{b}); err != nil {
		s.logger.Error("failed to write real-time command", "command", name, "error", err)
		err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		c.closeAsync(s, err)

		return err
	}

	c.metrics.incRealtimeSendCount()
	if s.settings.Verbose() && b != '?' {
		c.DispatchMessage(MessageVerbose, fmt.Sprintf(">> 0x%02x (%s)", b, name))
	}

	return nil
}

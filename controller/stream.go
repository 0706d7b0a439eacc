package controller

import (
	"fmt"
	"sync/atomic"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/firmware"
	"github.com/arloliu/go-gsender/machine"
)

// Progress reports how far the current or last stream got.
type Progress struct {
	Total         int
	Sent          int
	Acknowledged  int
	Failed        int
	InFlightBytes int
	Capacity      int
}

// Done reports whether every line of the stream was answered.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Acknowledged+p.Failed == p.Total
}

type progressCounters struct {
	total        atomic.Int64
	sent         atomic.Int64
	acknowledged atomic.Int64
	failed       atomic.Int64
}

func (p *progressCounters) reset(total int) {
	p.total.Store(int64(total))
	p.sent.Store(0)
	p.acknowledged.Store(0)
	p.failed.Store(0)
}

// LoadProgram sets the program streamed by Send. It fails while a stream runs.
func (c *Controller) LoadProgram(program ProgramSource) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.streaming.Load() {
		return ErrAlreadyStreaming
	}

	c.programMu.Lock()
	c.program = program
	c.programMu.Unlock()

	return nil
}

func (c *Controller) loadedProgram() ProgramSource {
	c.programMu.Lock()
	defer c.programMu.Unlock()

	return c.program
}

// IsStreaming reports whether a program is being streamed.
func (c *Controller) IsStreaming() bool {
	return c.streaming.Load()
}

// Progress returns the counters of the current or last stream.
func (c *Controller) Progress() Progress {
	return Progress{
		Total:         int(c.progress.total.Load()),
		Sent:          int(c.progress.sent.Load()),
		Acknowledged:  int(c.progress.acknowledged.Load()),
		Failed:        int(c.progress.failed.Load()),
		InFlightBytes: c.disp.inFlightBytes(),
		Capacity:      c.disp.bufferCapacity(),
	}
}

// Send streams the loaded program. It returns once the program is queued;
// completion is reported to listeners and by Progress.
func (c *Controller) Send() error {
	s, err := c.connected()
	if err != nil {
		return err
	}
	if err := c.checkNotAlarm(); err != nil {
		return err
	}
	if err := c.checkNoResetPending(s); err != nil {
		return err
	}

	c.streamMu.Lock()
	if c.streaming.Load() {
		c.streamMu.Unlock()
		return ErrAlreadyStreaming
	}

	cmds, err := c.buildProgram()
	if err != nil {
		c.streamMu.Unlock()
		return err
	}
	if err := c.queue.EnqueueAll(cmds); err != nil {
		c.streamMu.Unlock()
		return err
	}

	c.progress.reset(len(cmds))
	c.metrics.setQueueLength(len(cmds))
	c.disp.resume()
	c.streaming.Store(true)
	c.streamMu.Unlock()

	if c.tracker.Snapshot().RunState == machine.RunStateIdle {
		_ = c.transition(machine.RunStateRun)
	}

	s.logger.Info("stream started", "commands", len(cmds))
	c.DispatchMessage(MessageInfo, fmt.Sprintf("streaming %d commands", len(cmds)))
	s.wakeSender()

	return nil
}

func (c *Controller) buildProgram() ([]*command.Command, error) {
	program := c.loadedProgram()
	if program == nil {
		return nil, ErrNoProgram
	}

	var cmds []*command.Command
	for line := range program.Commands() {
		cmd := command.New(line)
		if cmd.IsEmpty() {
			continue
		}
		cmd.ID = c.nextID.Add(1)
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 {
		return nil, ErrNoProgram
	}

	return cmds, nil
}

// PauseResume holds a running machine or resumes a held one.
func (c *Controller) PauseResume() error {
	s, err := c.connected()
	if err != nil {
		return err
	}

	switch st := c.tracker.Snapshot().RunState; st {
	case machine.RunStateRun, machine.RunStateJog:
		c.disp.pause()
		if err := c.writeRealtime(s, firmware.RealtimeFeedHold); err != nil {
			return err
		}

		return c.transition(machine.RunStateHold)

	case machine.RunStateHold, machine.RunStateDoor:
		if err := c.writeRealtime(s, firmware.RealtimeCycleStart); err != nil {
			return err
		}
		c.disp.resume()
		s.wakeSender()

		return c.transition(machine.RunStateRun)

	default:
		return fmt.Errorf("%w: cannot pause or resume in %s", ErrInvalidState, st)
	}
}

// Cancel drops the queued program and stops the machine with a feed hold
// followed by a soft reset. Lines already on the wire are discarded by the
// firmware; the dispatcher is reset when its welcome banner arrives. Until
// then Send, jogs and probing are refused.
func (c *Controller) Cancel() error {
	s, err := c.connected()
	if err != nil {
		return err
	}

	// streamMu keeps program lines from following the reset byte
	c.streamMu.Lock()
	c.streaming.Store(false)
	dropped := c.queue.Clear()
	c.metrics.setQueueLength(0)
	err = c.writeRealtime(s, firmware.RealtimeFeedHold)
	if err == nil {
		s.resetPending.Store(true)
		err = c.writeRealtime(s, firmware.RealtimeSoftReset)
	}
	c.streamMu.Unlock()

	if err != nil {
		return err
	}

	s.logger.Info("stream canceled", "dropped", dropped)
	c.DispatchMessage(MessageInfo, fmt.Sprintf("canceled, %d commands dropped", dropped))

	return nil
}

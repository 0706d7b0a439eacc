package controller

import (
	"sync"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/internal/queue"
)

// inflight is a line written to the firmware and waiting for its "ok" or
// "error:n".
type inflight struct {
	cmd     *command.Command
	charge  int
	program bool
	// restore asks for the parser state restore line once acknowledged.
	restore bool
	onAck   func(err error)
}

// dispatcher implements character-counting flow control: the bytes of every
// line on the wire, program or ad-hoc, are charged against the firmware's
// receive buffer and released by the acknowledgment, matched in FIFO order.
// The pause flag holds program lines only.
type dispatcher struct {
	mu       sync.Mutex
	capacity int
	inFlight int
	entries  *queue.Queue[*inflight]
	paused   bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{entries: queue.New[*inflight](64)}
}

// bind sets the capacity of a new session and empties the dispatcher.
func (d *dispatcher) bind(capacity int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.capacity = capacity
	d.resetLocked()
}

// admit charges the entry's wire size and pushes it when it fits in the
// remaining capacity.
func (d *dispatcher) admit(e *inflight) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	size := e.cmd.Size()
	if d.inFlight+size > d.capacity {
		return false
	}

	e.charge = size
	d.inFlight += size
	d.entries.Enqueue(e)

	return true
}

// acknowledge pops the oldest entry and releases its charge.
func (d *dispatcher) acknowledge() (*inflight, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries.Dequeue()
	if !ok {
		return nil, ErrUnexpectedAck
	}
	d.inFlight -= e.charge

	return e, nil
}

// reset empties the FIFO, zeroes the budget and clears the pause. It returns
// the dropped entries, oldest first.
func (d *dispatcher) reset() []*inflight {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.resetLocked()
}

func (d *dispatcher) resetLocked() []*inflight {
	dropped := d.entries.Drain()
	d.inFlight = 0
	d.paused = false

	return dropped
}

func (d *dispatcher) pause() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.paused = true
}

func (d *dispatcher) resume() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.paused = false
}

func (d *dispatcher) isPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.paused
}

func (d *dispatcher) inFlightBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.inFlight
}

func (d *dispatcher) bufferCapacity() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.capacity
}

func (d *dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.entries.Length()
}

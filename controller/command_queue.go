package controller

import (
	"fmt"
	"sync"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/internal/queue"
)

// commandQueue holds the program commands of a stream from Enqueue until
// their acknowledgment. Commands before the cursor are on the wire; the
// others wait for buffer space.
type commandQueue struct {
	mu       sync.Mutex
	items    *queue.Queue[*command.Command]
	sent     int
	bound    bool
	capacity int
}

func newCommandQueue() *commandQueue {
	return &commandQueue{items: queue.New[*command.Command](256)}
}

// bind attaches the queue to a connected session with the given buffer capacity.
func (q *commandQueue) bind(capacity int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.bound = true
	q.capacity = capacity
}

// unbind detaches the queue from the session and drops every command.
func (q *commandQueue) unbind() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.bound = false

	return q.clearLocked()
}

func (q *commandQueue) check(cmd *command.Command) error {
	if !q.bound {
		return ErrNotConnected
	}
	if cmd.Size() > q.capacity {
		return fmt.Errorf("%w: %d bytes > %d: %q", ErrCommandTooLarge, cmd.Size(), q.capacity, cmd.Text)
	}

	return nil
}

// Enqueue appends one command.
func (q *commandQueue) Enqueue(cmd *command.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.check(cmd); err != nil {
		return err
	}
	q.items.Enqueue(cmd)

	return nil
}

// EnqueueAll appends every command or none of them.
func (q *commandQueue) EnqueueAll(cmds []*command.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, cmd := range cmds {
		if err := q.check(cmd); err != nil {
			return err
		}
	}
	for _, cmd := range cmds {
		q.items.Enqueue(cmd)
	}

	return nil
}

// PeekNext returns the first command not yet sent, or nil.
func (q *commandQueue) PeekNext() *command.Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	cmd, ok := q.items.At(q.sent)
	if !ok {
		return nil
	}

	return cmd
}

// MarkSent advances the cursor past cmd, which must be the PeekNext result.
func (q *commandQueue) MarkSent(cmd *command.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	next, ok := q.items.At(q.sent)
	if !ok || next != cmd {
		return false
	}
	q.sent++
	cmd.MarkSent()

	return true
}

// DequeueOnAck removes the acknowledged command with the given id. Since
// acknowledgments arrive in order this is the oldest sent command.
func (q *commandQueue) DequeueOnAck(id uint64) (*command.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sent == 0 {
		return nil, false
	}

	cmd, ok := q.items.RemoveFirst(func(c *command.Command) bool { return c.ID == id })
	if !ok {
		return nil, false
	}
	q.sent--

	return cmd, true
}

// Clear drops every command and returns how many were dropped.
func (q *commandQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.clearLocked()
}

func (q *commandQueue) clearLocked() int {
	n := q.items.Length()
	q.items.Reset()
	q.sent = 0

	return n
}

// Len returns the number of commands not yet acknowledged.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Length()
}

// Pending returns the number of commands not yet sent.
func (q *commandQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Length() - q.sent
}

package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-gsender/logger"
)

// ConnState represents the stages of a controller connection.
type ConnState uint32

// Connection states.
const (
	// DisconnectedState indicates that no transport is open.
	DisconnectedState ConnState = iota
	// ConnectingState indicates that the transport is open and the firmware
	// has not answered yet.
	ConnectingState
	// ConnectedState indicates that the firmware answered and commands may be sent.
	ConnectedState
)

// IsDisconnected returns if the current state is disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnecting returns if the current state is connecting.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsConnected returns if the current state is connected.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// String returns string representation of the current state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	default:
		return "unknown"
	}
}

var errInvalidConnTransition = errors.New("controller: invalid connection state transition")

// ConnStateChangeHandler is invoked on every connection state change.
//
// Note: the handler is invoked in a blocking mode by the goroutine changing
// the state. Take care with long-running implementations.
type ConnStateChangeHandler func(prevState ConnState, newState ConnState)

// ConnStateMgr manages the connection state of a controller.
//
// It validates transitions, notifies handlers and lets goroutines wait for a
// state. It is safe for concurrent use.
type ConnStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

// NewConnStateMgr creates a new ConnStateMgr in DisconnectedState.
func NewConnStateMgr(l logger.Logger, handlers ...ConnStateChangeHandler) *ConnStateMgr {
	cs := &ConnStateMgr{
		logger:   l,
		handlers: make([]ConnStateChangeHandler, 0, len(handlers)),
	}
	cs.cond = sync.NewCond(&cs.mu)
	cs.state.Store(uint32(DisconnectedState))
	cs.AddHandler(handlers...)

	return cs
}

// State returns the current connection state.
func (cs *ConnStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// AddHandler adds one or more handlers invoked on state changes.
func (cs *ConnStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.handlers = append(cs.handlers, handlers...)
}

// WaitState waits for the connection state to reach state or until ctx is done.
func (cs *ConnStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()

		cs.cond.Broadcast()
	})
	defer stop()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			cs.logger.Debug("wait connection state canceled", "cur_state", cs.State(), "desired_state", state)
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

// WaitChange waits until the state leaves from, returning the new state, or
// until ctx is done.
func (cs *ConnStateMgr) WaitChange(ctx context.Context, from ConnState) (ConnState, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()

		cs.cond.Broadcast()
	})
	defer stop()

	for cs.State() == from {
		if err := ctx.Err(); err != nil {
			return from, err
		}
		cs.cond.Wait()
	}

	return cs.State(), nil
}

// ToConnecting transitions from DisconnectedState to ConnectingState.
func (cs *ConnStateMgr) ToConnecting() error {
	return cs.transition(ConnectingState, DisconnectedState)
}

// ToConnected transitions from ConnectingState to ConnectedState. It is a
// no-op when already connected.
func (cs *ConnStateMgr) ToConnected() error {
	return cs.transition(ConnectedState, ConnectingState)
}

// ToDisconnected transitions to DisconnectedState. This transition is allowed
// from any state.
func (cs *ConnStateMgr) ToDisconnected() {
	_ = cs.transition(DisconnectedState, ConnectingState, ConnectedState)
}

func (cs *ConnStateMgr) transition(to ConnState, from ...ConnState) error {
	cs.mu.Lock()

	cur := cs.State()
	if cur == to {
		cs.mu.Unlock()
		return nil
	}

	allowed := false
	for _, f := range from {
		if cur == f {
			allowed = true
			break
		}
	}
	if !allowed {
		cs.mu.Unlock()
		return errInvalidConnTransition
	}

	cs.state.Store(uint32(to))
	cs.cond.Broadcast()
	handlers := append([]ConnStateChangeHandler(nil), cs.handlers...)
	cs.mu.Unlock()

	cs.logger.Debug("connection state changed", "prev_state", cur, "new_state", to)
	for _, handler := range handlers {
		if handler != nil {
			handler(cur, to)
		}
	}

	return nil
}

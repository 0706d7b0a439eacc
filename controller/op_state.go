package controller

import "sync/atomic"

// OpState is the lifecycle of a Connect/Disconnect cycle. It serializes
// Connect against Disconnect and against a lost connection.
type OpState uint32

const (
	ClosedState OpState = iota
	ClosingState
	OpeningState
	OpenedState
)

var opStateNames = [...]string{
	ClosedState:  "Closed",
	ClosingState: "Closing",
	OpeningState: "Opening",
	OpenedState:  "Opened",
}

// opSources lists, per target state, the states it may be entered from.
var opSources = [...][]OpState{
	ClosedState:  {ClosingState},
	ClosingState: {OpenedState, OpeningState},
	OpeningState: {ClosedState},
	OpenedState:  {OpeningState},
}

func (s OpState) String() string {
	if int(s) < len(opStateNames) {
		return opStateNames[s]
	}

	return "Unknown"
}

// AtomicOpState is an OpState with compare-and-swap transitions.
type AtomicOpState struct {
	state atomic.Uint32
}

func (st *AtomicOpState) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *AtomicOpState) Get() OpState {
	return OpState(st.state.Load())
}

// Set sets the state unconditionally.
func (st *AtomicOpState) Set(state OpState) {
	st.state.Store(uint32(state))
}

// ToOpening claims the lifecycle for a Connect. Only one caller wins.
func (st *AtomicOpState) ToOpening() bool { return st.move(OpeningState) }

// ToOpened completes a Connect.
func (st *AtomicOpState) ToOpened() bool { return st.moveOrStay(OpenedState) }

// ToClosing starts a teardown from an open or half open connection.
func (st *AtomicOpState) ToClosing() bool { return st.move(ClosingState) }

// ToClosed completes a teardown.
func (st *AtomicOpState) ToClosed() bool { return st.moveOrStay(ClosedState) }

func (st *AtomicOpState) move(target OpState) bool {
	for _, from := range opSources[target] {
		if st.state.CompareAndSwap(uint32(from), uint32(target)) {
			return true
		}
	}

	return false
}

func (st *AtomicOpState) moveOrStay(target OpState) bool {
	return st.Get() == target || st.move(target)
}

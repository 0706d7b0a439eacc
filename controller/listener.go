package controller

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-gsender/machine"
)

// MessageType classifies a message dispatched to listeners.
type MessageType uint8

const (
	// MessageInfo is a progress or lifecycle notice.
	MessageInfo MessageType = iota
	// MessageError reports a firmware error, an alarm or a session failure.
	MessageError
	// MessageFirmware carries a feedback message from the firmware.
	MessageFirmware
	// MessageVerbose carries raw traffic when verbose mode is enabled.
	MessageVerbose
)

func (t MessageType) String() string {
	switch t {
	case MessageInfo:
		return "info"
	case MessageError:
		return "error"
	case MessageFirmware:
		return "firmware"
	case MessageVerbose:
		return "verbose"
	default:
		return "unknown"
	}
}

// Listener observes a controller. Callbacks run synchronously on the
// goroutine that caused them; they must not block and must not call back
// into the controller.
type Listener interface {
	OnMessage(msgType MessageType, text string)
	OnStateChange(state machine.State)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Message     func(msgType MessageType, text string)
	StateChange func(state machine.State)
}

var _ Listener = ListenerFuncs{}

func (f ListenerFuncs) OnMessage(msgType MessageType, text string) {
	if f.Message != nil {
		f.Message(msgType, text)
	}
}

func (f ListenerFuncs) OnStateChange(state machine.State) {
	if f.StateChange != nil {
		f.StateChange(state)
	}
}

// ListenerID identifies a registered listener.
type ListenerID uint64

// listenerSet is the per-controller observer set.
type listenerSet struct {
	nextID    atomic.Uint64
	listeners *xsync.MapOf[ListenerID, Listener]
}

func newListenerSet() *listenerSet {
	return &listenerSet{listeners: xsync.NewMapOf[ListenerID, Listener]()}
}

func (ls *listenerSet) add(l Listener) ListenerID {
	id := ListenerID(ls.nextID.Add(1))
	ls.listeners.Store(id, l)

	return id
}

func (ls *listenerSet) remove(id ListenerID) bool {
	_, ok := ls.listeners.LoadAndDelete(id)
	return ok
}

func (ls *listenerSet) message(msgType MessageType, text string) {
	ls.listeners.Range(func(_ ListenerID, l Listener) bool {
		l.OnMessage(msgType, text)
		return true
	})
}

func (ls *listenerSet) stateChange(state machine.State) {
	ls.listeners.Range(func(_ ListenerID, l Listener) bool {
		l.OnStateChange(state)
		return true
	})
}

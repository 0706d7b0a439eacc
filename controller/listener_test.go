package controller

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gsender/machine"
)

func TestListenerSet(t *testing.T) {
	require := require.New(t)

	ls := newListenerSet()

	var messages []string
	var states []machine.RunState
	id := ls.add(ListenerFuncs{
		Message:     func(msgType MessageType, text string) { messages = append(messages, msgType.String()+":"+text) },
		StateChange: func(state machine.State) { states = append(states, state.RunState) },
	})
	// nil callbacks are skipped
	other := ls.add(ListenerFuncs{})
	require.NotEqual(id, other)

	ls.message(MessageInfo, "hello")
	ls.message(MessageError, "boom")
	ls.stateChange(machine.State{RunState: machine.RunStateIdle})

	require.Equal([]string{"info:hello", "error:boom"}, messages)
	require.Equal([]machine.RunState{machine.RunStateIdle}, states)

	require.True(ls.remove(id))
	require.False(ls.remove(id))

	ls.message(MessageFirmware, "ignored")
	require.Len(messages, 2)

	require.Equal("firmware", MessageFirmware.String())
	require.Equal("verbose", MessageVerbose.String())
	require.Equal("unknown", MessageType(99).String())
}

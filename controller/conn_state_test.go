package controller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gsender/logger"
)

func TestConnStateTransitions(t *testing.T) {
	require := require.New(t)

	var changes atomic.Int32
	cs := NewConnStateMgr(logger.GetLogger(), func(_, _ ConnState) { changes.Add(1) })
	require.True(cs.State().IsDisconnected())

	require.ErrorIs(cs.ToConnected(), errInvalidConnTransition)
	require.Equal(int32(0), changes.Load())

	require.NoError(cs.ToConnecting())
	require.True(cs.State().IsConnecting())
	require.NoError(cs.ToConnecting(), "no-op when already connecting")
	require.Equal(int32(1), changes.Load())

	require.NoError(cs.ToConnected())
	require.True(cs.State().IsConnected())
	require.ErrorIs(cs.ToConnecting(), errInvalidConnTransition)

	cs.ToDisconnected()
	require.True(cs.State().IsDisconnected())
	require.Equal(int32(3), changes.Load())

	require.Equal("disconnected", DisconnectedState.String())
	require.Equal("connecting", ConnectingState.String())
	require.Equal("connected", ConnectedState.String())
	require.Equal("unknown", ConnState(9).String())
}

func TestConnStateWait(t *testing.T) {
	require := require.New(t)

	cs := NewConnStateMgr(logger.GetLogger())
	require.NoError(cs.ToConnecting())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = cs.ToConnected()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(cs.WaitState(ctx, ConnectedState))

	state, err := cs.WaitChange(ctx, ConnectingState)
	require.NoError(err)
	require.Equal(ConnectedState, state)
}

func TestConnStateWaitCanceled(t *testing.T) {
	require := require.New(t)

	cs := NewConnStateMgr(logger.GetLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.ErrorIs(cs.WaitState(ctx, ConnectedState), context.DeadlineExceeded)

	state, err := cs.WaitChange(ctx, DisconnectedState)
	require.ErrorIs(err, context.DeadlineExceeded)
	require.Equal(DisconnectedState, state)
}

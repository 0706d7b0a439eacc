package controller

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicOpState(t *testing.T) {
	require := require.New(t)

	var st AtomicOpState
	require.Equal(ClosedState, st.Get())
	require.Equal("Closed", st.String())

	require.False(st.ToOpened(), "cannot open without opening")
	require.False(st.ToClosing(), "nothing to close")
	require.True(st.ToOpening())
	require.False(st.ToOpening())
	require.True(st.ToOpened())
	require.True(st.ToOpened(), "already opened")

	require.True(st.ToClosing())
	require.False(st.ToClosing())
	require.False(st.ToOpening(), "connect refused while closing")
	require.Equal(ClosingState, st.Get())
	require.True(st.ToClosed())
	require.True(st.ToClosed(), "already closed")

	// a failed handshake closes from the opening state
	require.True(st.ToOpening())
	require.True(st.ToClosing())
	require.True(st.ToClosed())

	st.Set(OpenedState)
	require.Equal("Opened", st.String())
	require.Equal("Unknown", OpState(42).String())
}

func TestAtomicOpStateSingleOpener(t *testing.T) {
	var (
		st   AtomicOpState
		wins atomic.Int32
		wg   sync.WaitGroup
	)

	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if st.ToOpening() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, OpeningState, st.Get())
}

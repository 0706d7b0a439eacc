package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-gsender/logger"
	"github.com/stretchr/testify/require"
)

func TestManagerStartStop(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.GetLogger())

	var iterations atomic.Int32
	require.NoError(mgr.Start("loop", func(ctx context.Context) bool {
		iterations.Add(1)
		select {
		case <-ctx.Done():
		case <-time.After(time.Millisecond):
		}
		return true
	}))

	require.Eventually(func() bool { return iterations.Load() > 3 }, time.Second, time.Millisecond)
	require.Equal(1, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()
	require.Equal(0, mgr.TaskCount())

	// the manager is re-armed after Wait
	done := make(chan struct{})
	require.NoError(mgr.Start("once", func(context.Context) bool {
		close(done)
		return false
	}))
	<-done
	mgr.Wait()
}

func TestManagerStartOnStopped(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())
	mgr.Stop()

	require.ErrorIs(t, mgr.Start("late", func(context.Context) bool { return false }), ErrStopped)
	mgr.Wait()
}

func TestManagerInterval(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.GetLogger())

	var ticks atomic.Int32
	require.NoError(mgr.StartInterval("poll", func(context.Context) bool {
		return ticks.Add(1) < 3
	}, 5*time.Millisecond, true))

	require.Error(mgr.StartInterval("bad", func(context.Context) bool { return true }, 0, false))

	require.Eventually(func() bool { return mgr.TaskCount() == 0 }, time.Second, time.Millisecond)
	require.Equal(int32(3), ticks.Load())

	mgr.Stop()
	mgr.Wait()
}

func TestManagerRecoversPanic(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	require.NoError(t, mgr.Start("panicky", func(context.Context) bool {
		panic("boom")
	}))

	require.Eventually(t, func() bool { return mgr.TaskCount() == 0 }, time.Second, time.Millisecond)
	mgr.Stop()
	mgr.Wait()
}

package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gsender/firmware"
	"github.com/arloliu/go-gsender/internal/grblsim"
	"github.com/arloliu/go-gsender/machine"
	"github.com/arloliu/go-gsender/transport"
)

// stallingTransport blocks writes of lines starting with prefix until it is
// closed, like a serial port held by hardware flow control.
type stallingTransport struct {
	*grblsim.Sim
	prefix  string
	stalled chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newStallingTransport(sim *grblsim.Sim, prefix string) *stallingTransport {
	return &stallingTransport{
		Sim:     sim,
		prefix:  prefix,
		stalled: make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

func (t *stallingTransport) WriteLine(line string) error {
	if !strings.HasPrefix(line, t.prefix) {
		return t.Sim.WriteLine(line)
	}

	select {
	case t.stalled <- struct{}{}:
	default:
	}
	<-t.closed

	return transport.ErrClosed
}

func (t *stallingTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return t.Sim.Close()
}

// delayedResetTransport holds soft reset bytes back until release.
type delayedResetTransport struct {
	*grblsim.Sim
	mu   sync.Mutex
	held int
}

func (t *delayedResetTransport) WriteRaw(b []byte) error {
	if len(b) == 1 && b[0] == 0x18 {
		t.mu.Lock()
		t.held++
		t.mu.Unlock()

		return nil
	}

	return t.Sim.WriteRaw(b)
}

func (t *delayedResetTransport) release() error {
	t.mu.Lock()
	n := t.held
	t.held = 0
	t.mu.Unlock()

	for range n {
		if err := t.Sim.WriteRaw([]byte{0x18}); err != nil {
			return err
		}
	}

	return nil
}

var errCableCut = errors.New("cable cut")

// failingTransport fails every write once armed.
type failingTransport struct {
	*grblsim.Sim
	armed atomic.Bool
}

func (t *failingTransport) WriteLine(line string) error {
	if t.armed.Load() {
		return errCableCut
	}

	return t.Sim.WriteLine(line)
}

func (t *failingTransport) WriteRaw(b []byte) error {
	if t.armed.Load() {
		return errCableCut
	}

	return t.Sim.WriteRaw(b)
}

func TestDisconnectWithStalledWrite(t *testing.T) {
	require := require.New(t)

	sim := grblsim.New(grblsim.WithSilentStart())
	tr := newStallingTransport(sim, "G1")
	ctrl := connectSim(t, sim, transportOpener(tr))

	require.NoError(ctrl.LoadProgram(Lines{"G1 X1 F100", "G1 X2"}))
	require.NoError(ctrl.Send())

	select {
	case <-tr.stalled:
	case <-time.After(waitFor):
		require.Fail("program line never written")
	}

	canceled := make(chan error, 1)
	go func() { canceled <- ctrl.Cancel() }()

	disconnected := make(chan error, 1)
	go func() { disconnected <- ctrl.Disconnect() }()

	select {
	case err := <-disconnected:
		require.NoError(err)
	case <-time.After(waitFor):
		require.Fail("Disconnect blocked by a stalled write")
	}

	select {
	case err := <-canceled:
		require.ErrorIs(err, ErrNotConnected)
	case <-time.After(waitFor):
		require.Fail("Cancel blocked by a stalled write")
	}

	require.Equal(DisconnectedState, ctrl.ConnState())
	require.False(ctrl.IsStreaming())
	require.Equal(0, ctrl.Progress().InFlightBytes)
	require.NoError(ctrl.LastError())
}

func TestMotionRefusedUntilResetConfirmed(t *testing.T) {
	resets := []struct {
		name  string
		reset func(*Controller) error
	}{
		{name: "cancel", reset: (*Controller).Cancel},
		{name: "soft reset", reset: (*Controller).IssueSoftReset},
	}

	for _, tt := range resets {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			sim := grblsim.New(grblsim.WithSilentStart())
			tr := &delayedResetTransport{Sim: sim}
			ctrl := connectSim(t, sim, transportOpener(tr))

			rec := &messageRecorder{}
			ctrl.AddListener(rec)

			program := Lines{"G1 X1 F100", "G1 X2"}
			require.NoError(ctrl.LoadProgram(program))
			require.NoError(ctrl.Send())
			require.NoError(tt.reset(ctrl))

			require.ErrorIs(ctrl.Send(), ErrInvalidState)
			require.ErrorIs(ctrl.Jog(machine.XYZ(machine.UnitsMM, 1, 0, 0), 100), ErrInvalidState)
			_, err := ctrl.Probe(context.Background(), machine.AxisZ, 100, -10, machine.UnitsMM)
			require.ErrorIs(err, ErrInvalidState)
			require.ErrorIs(ctrl.ReturnToZero(), ErrInvalidState)

			require.NoError(tr.release())
			require.Eventually(func() bool { return rec.hasMessage("Grbl 1.1h") }, waitFor, tick)

			// a stream started after the banner survives
			require.NoError(ctrl.Send())
			require.Eventually(func() bool { return !ctrl.IsStreaming() }, waitFor, tick)
			p := ctrl.Progress()
			require.True(p.Done())
			require.Equal(len(program), p.Acknowledged)
			require.False(rec.hasMessage("aborted by reset"))
		})
	}
}

func TestWriteFailureClosesSession(t *testing.T) {
	requireLost := func(t *testing.T, ctrl *Controller) {
		t.Helper()
		require := require.New(t)

		require.Eventually(func() bool { return ctrl.ConnState() == DisconnectedState }, waitFor, tick)
		require.ErrorIs(ctrl.LastError(), ErrConnectionLost)
		require.ErrorIs(ctrl.LastError(), ErrWriteFailed)
		require.ErrorIs(ctrl.LastError(), errCableCut)
		require.False(ctrl.IsStreaming())
		require.Equal(0, ctrl.queue.Len())
		require.Equal(0, ctrl.Progress().InFlightBytes)
		require.Equal(0, ctrl.disp.pending())
		require.Equal(uint32(1), ctrl.GetMetrics().ConnLostCount.Load())

		require.NoError(ctrl.LoadProgram(Lines{"G1 X1 F100"}))
		require.ErrorIs(ctrl.Send(), ErrNotConnected)
	}

	t.Run("line", func(t *testing.T) {
		sim := grblsim.New(grblsim.WithSilentStart())
		tr := &failingTransport{Sim: sim}
		ctrl := connectSim(t, sim, transportOpener(tr))

		tr.armed.Store(true)
		err := ctrl.SendGcodeCommand("G4 P0")
		require.ErrorIs(t, err, ErrWriteFailed)
		require.ErrorIs(t, err, errCableCut)
		requireLost(t, ctrl)
	})

	t.Run("real-time byte", func(t *testing.T) {
		sim := grblsim.New(grblsim.WithSilentStart())
		tr := &failingTransport{Sim: sim}
		ctrl := connectSim(t, sim, transportOpener(tr))

		tr.armed.Store(true)
		require.ErrorIs(t, ctrl.SendOverrideCommand(firmware.OverrideFeedPlus10), ErrWriteFailed)
		requireLost(t, ctrl)
	})

	t.Run("program line", func(t *testing.T) {
		require := require.New(t)

		sim := grblsim.New(grblsim.WithSilentStart(), grblsim.WithManualAck())
		tr := &failingTransport{Sim: sim}
		ctrl := connectSim(t, sim, transportOpener(tr), WithBufferCapacity(10))

		require.NoError(ctrl.LoadProgram(Lines{"M05", "M05", "M05", "M05"}))
		require.NoError(ctrl.Send())
		require.Eventually(func() bool { return ctrl.Progress().Sent == 2 }, waitFor, tick)

		// the freed budget makes the sender write the third line
		tr.armed.Store(true)
		require.Equal(1, sim.AckNext(1))
		requireLost(t, ctrl)
		require.Equal(2, programLines(sim, "M05"))
	})
}

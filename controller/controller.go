package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/firmware"
	"github.com/arloliu/go-gsender/internal/pool"
	"github.com/arloliu/go-gsender/internal/task"
	"github.com/arloliu/go-gsender/logger"
	"github.com/arloliu/go-gsender/machine"
	"github.com/arloliu/go-gsender/transport"
)

// Controller streams G-code programs to a GRBL family firmware and keeps
// track of the machine state.
//
// A Controller is reusable: Connect opens a session, Disconnect or a lost
// connection closes it, and Connect may be called again afterwards. All
// methods are safe for concurrent use.
type Controller struct {
	pctx     context.Context
	settings atomic.Pointer[Settings]
	logger   logger.Logger

	tracker   *machine.Tracker
	queue     *commandQueue
	disp      *dispatcher
	listeners *listenerSet
	stateMgr  *ConnStateMgr
	opState   AtomicOpState
	taskMgr   *task.Manager
	session   atomic.Pointer[session]
	connectMu sync.Mutex // serializes Connect and Disconnect

	streamMu  sync.Mutex // sender iteration vs Send and Cancel
	streaming atomic.Bool
	programMu sync.Mutex
	program   ProgramSource
	progress  progressCounters

	nextID atomic.Uint64
	probes *xsync.MapOf[uint64, chan probeOutcome]

	errMu   sync.Mutex
	lastErr error

	metrics ControllerMetrics
}

// session is the state of one Connect, discarded when the connection closes.
type session struct {
	id        string
	port      string
	transport transport.Transport
	dialect   firmware.Dialect
	settings  *Settings
	logger    logger.Logger
	units     machine.Units
	capacity  int

	ctx    context.Context
	cancel context.CancelFunc

	requests chan *lineRequest
	wake     chan struct{}
	// active is the ad-hoc request being written, owned by the sender.
	active *lineRequest

	restoreMu sync.Mutex
	restores  []*command.Command

	// resetPending is set by a soft reset and cleared by the banner that
	// confirms it.
	resetPending atomic.Bool
	closing      atomic.Bool
}

// wakeSender nudges the sender without blocking.
func (s *session) wakeSender() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) pushRestore(line string) {
	s.restoreMu.Lock()
	s.restores = append(s.restores, command.New(line))
	s.restoreMu.Unlock()

	s.wakeSender()
}

func (s *session) peekRestore() *command.Command {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()

	if len(s.restores) == 0 {
		return nil
	}

	return s.restores[0]
}

func (s *session) popRestore() {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()

	if len(s.restores) > 0 {
		s.restores = s.restores[1:]
	}
}

// New creates a disconnected controller. A nil settings uses the defaults.
func New(ctx context.Context, settings *Settings) *Controller {
	if settings == nil {
		settings, _ = NewSettings()
	}

	l := settings.GetLogger().With("component", "controller")
	c := &Controller{
		pctx:      ctx,
		logger:    l,
		tracker:   machine.NewTracker(settings.Units()),
		queue:     newCommandQueue(),
		disp:      newDispatcher(),
		listeners: newListenerSet(),
		taskMgr:   task.NewManager(ctx, l),
		probes:    xsync.NewMapOf[uint64, chan probeOutcome](),
	}
	c.settings.Store(settings)
	c.stateMgr = NewConnStateMgr(l, c.connStateHandler)

	return c
}

// ApplySettings replaces the settings. They take effect on the next Connect.
func (c *Controller) ApplySettings(settings *Settings) error {
	if settings == nil {
		return errors.New("controller: settings is nil")
	}
	c.settings.Store(settings)

	return nil
}

// Settings returns the current settings.
func (c *Controller) Settings() *Settings {
	return c.settings.Load()
}

// GetLogger returns the logger of the current session, or the controller
// logger when disconnected.
func (c *Controller) GetLogger() logger.Logger {
	if s := c.session.Load(); s != nil {
		return s.logger
	}

	return c.logger
}

// GetMetrics returns the controller metrics.
func (c *Controller) GetMetrics() *ControllerMetrics {
	return &c.metrics
}

// ConnState returns the connection state.
func (c *Controller) ConnState() ConnState {
	return c.stateMgr.State()
}

// State returns a snapshot of the machine state.
func (c *Controller) State() machine.State {
	return c.tracker.Snapshot()
}

// LastError returns the error that ended the last session, or nil if it was
// closed by Disconnect.
func (c *Controller) LastError() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	return c.lastErr
}

// AddListener registers l and returns its id.
func (c *Controller) AddListener(l Listener) ListenerID {
	return c.listeners.add(l)
}

// RemoveListener unregisters the listener with the given id. It reports
// whether the listener was registered.
func (c *Controller) RemoveListener(id ListenerID) bool {
	return c.listeners.remove(id)
}

// DispatchMessage sends a message to every listener.
func (c *Controller) DispatchMessage(msgType MessageType, text string) {
	c.listeners.message(msgType, text)
}

// Connect opens the port and waits for the firmware to answer with a welcome
// banner or a status report. An empty firmwareKind selects the settings
// default.
func (c *Controller) Connect(ctx context.Context, firmwareKind string, port string, baudRate int) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if !c.opState.ToOpening() {
		return fmt.Errorf("%w: connection is %s", ErrInvalidState, c.opState.Get())
	}

	settings := c.settings.Load()
	if firmwareKind == "" {
		firmwareKind = settings.Firmware()
	}

	dialect, err := firmware.Lookup(firmwareKind)
	if err != nil {
		c.opState.Set(ClosedState)
		return err
	}

	capacity := settings.BufferCapacity()
	if capacity == 0 {
		capacity = dialect.BufferCapacity()
	}

	connectCtx, cancel := context.WithTimeout(ctx, settings.ConnectTimeout())
	defer cancel()

	tr, err := settings.Opener()(connectCtx, port, baudRate)
	if err != nil {
		c.opState.Set(ClosedState)
		c.logger.Error("failed to open port", "port", port, "error", err)

		return fmt.Errorf("controller: open %s: %w", port, err)
	}

	// tasks of the previous session must be gone before new ones start
	c.taskMgr.Wait()

	s := c.newSession(tr, dialect, settings, port, capacity)
	c.queue.bind(capacity)
	c.disp.bind(capacity)
	c.progress.reset(0)

	if err := c.stateMgr.ToConnecting(); err != nil {
		_ = tr.Close()
		c.opState.Set(ClosedState)

		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	c.session.Store(s)

	if change, changed := c.tracker.MarkConnected(s.units); changed {
		c.notifyState(change)
	}

	s.logger.Info("connecting", "baud_rate", baudRate, "buffer_capacity", capacity)

	if err := c.startTasks(s); err != nil {
		c.teardown(s, err)
		return err
	}

	state, err := c.stateMgr.WaitChange(connectCtx, ConnectingState)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %s", ErrHandshakeTimeout, port)
		c.teardown(s, err)

		return err
	case state != ConnectedState:
		if lastErr := c.LastError(); lastErr != nil {
			return lastErr
		}

		return ErrConnectionLost
	}

	if !c.opState.ToOpened() {
		return ErrConnectionLost
	}

	c.metrics.incConnectCount()
	s.logger.Info("connected")
	c.DispatchMessage(MessageInfo, fmt.Sprintf("connected to %s (%s)", port, dialect.Name()))

	return nil
}

func (c *Controller) newSession(
	tr transport.Transport,
	dialect firmware.Dialect,
	settings *Settings,
	port string,
	capacity int,
) *session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(c.pctx)

	return &session{
		id:        id,
		port:      port,
		transport: tr,
		dialect:   dialect,
		settings:  settings,
		logger:    settings.GetLogger().With("session", id, "port", port, "firmware", dialect.Name()),
		units:     settings.Units(),
		capacity:  capacity,
		ctx:       ctx,
		cancel:    cancel,
		requests:  make(chan *lineRequest, settings.RequestQueueSize()),
		wake:      make(chan struct{}, 1),
	}
}

func (c *Controller) startTasks(s *session) error {
	if err := c.taskMgr.Start("reader", func(ctx context.Context) bool {
		return c.readerTask(ctx, s)
	}); err != nil {
		return err
	}

	if err := c.taskMgr.Start("sender", func(ctx context.Context) bool {
		return c.senderTask(ctx, s)
	}); err != nil {
		return err
	}

	interval := s.settings.StatusPollInterval()
	if interval == 0 {
		// polling disabled, still ask once so that the handshake completes on
		// firmware that stays silent on connect
		return c.writeRealtime(s, firmware.RealtimeStatusQuery)
	}

	return c.taskMgr.StartInterval("statusPoller", func(_ context.Context) bool {
		return c.writeRealtime(s, firmware.RealtimeStatusQuery) == nil
	}, interval, true)
}

// Disconnect closes the session and waits for its tasks with the close
// timeout. It is a no-op when not connected.
func (c *Controller) Disconnect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	s := c.session.Load()
	if s == nil {
		return nil
	}

	c.teardown(s, nil)

	timeout := s.settings.CloseTimeout()
	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	done := make(chan struct{})
	go func() {
		c.taskMgr.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("disconnected")
		return nil
	case <-timer.C:
		s.logger.Error("close timeout", "timeout", timeout)
		return fmt.Errorf("%w: %v", ErrCloseTimeout, timeout)
	}
}

// teardown closes session s. It runs once per session, from Disconnect, from
// a task noticing the lost transport, or from a failed write. It never waits
// for the tasks, so tasks may call it.
func (c *Controller) teardown(s *session, cause error) {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}

	c.opState.ToClosing()
	if cause != nil {
		s.logger.Error("session closed", "error", cause)
	} else {
		s.logger.Debug("session closing")
	}

	s.cancel()

	// closing first unblocks a sender stuck in a write while holding streamMu
	if err := s.transport.Close(); err != nil {
		s.logger.Debug("failed to close transport", "error", err)
	}
	c.taskMgr.Stop()

	c.streamMu.Lock()
	c.streaming.Store(false)
	dropped := c.queue.unbind()
	c.streamMu.Unlock()

	lost := ErrConnectionLost
	if cause != nil && !errors.Is(cause, ErrConnectionLost) {
		lost = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
	}
	for _, e := range c.disp.reset() {
		if e.onAck != nil {
			e.onAck(lost)
		}
	}
	c.failProbes(lost)

	c.session.CompareAndSwap(s, nil)
	c.metrics.setInFlightBytes(0)
	c.metrics.setQueueLength(0)

	c.errMu.Lock()
	c.lastErr = nil
	if cause != nil {
		c.lastErr = lost
	}
	c.errMu.Unlock()

	if change, changed := c.tracker.Reset(); changed {
		c.notifyState(change)
	}

	if cause != nil {
		c.metrics.incConnLostCount()
		c.DispatchMessage(MessageError, lost.Error())
	}
	if dropped > 0 {
		c.DispatchMessage(MessageInfo, fmt.Sprintf("stream aborted, %d commands dropped", dropped))
	}

	c.stateMgr.ToDisconnected()
	c.opState.ToClosed()
}

// closeAsync tears the session down from a goroutine that may hold
// controller locks.
func (c *Controller) closeAsync(s *session, cause error) {
	go c.teardown(s, cause)
}

func (c *Controller) connStateHandler(prev ConnState, cur ConnState) {
	c.logger.Debug("connection state handler", "prev_state", prev, "new_state", cur)
}

// connected returns the active session or ErrNotConnected.
func (c *Controller) connected() (*session, error) {
	s := c.session.Load()
	if s == nil || s.closing.Load() || !c.stateMgr.State().IsConnected() {
		return nil, ErrNotConnected
	}

	return s, nil
}

// notifyState forwards a tracker change to the listeners. It must not be
// called with streamMu held.
func (c *Controller) notifyState(change machine.Change) {
	if change.RunStateChanged() {
		c.GetLogger().Debug("run state changed", "prev", change.Prev.RunState, "new", change.Curr.RunState)
	}
	c.listeners.stateChange(change.Curr)
}

// transition applies a command-driven run state change and notifies.
func (c *Controller) transition(to machine.RunState) error {
	change, err := c.tracker.Transition(to)
	if err != nil {
		return err
	}
	if change.Prev != change.Curr {
		c.notifyState(change)
	}

	return nil
}

// checkNotAlarm fails with ErrAlarmActive while the machine is locked.
func (c *Controller) checkNotAlarm() error {
	st := c.tracker.Snapshot()
	if st.IsAlarm() {
		return fmt.Errorf("%w: ALARM:%d", ErrAlarmActive, st.AlarmCode)
	}

	return nil
}

// checkNoResetPending refuses motion until the firmware confirms a soft
// reset. The banner would abort whatever was started before it.
func (c *Controller) checkNoResetPending(s *session) error {
	if s.resetPending.Load() {
		return fmt.Errorf("%w: soft reset pending", ErrInvalidState)
	}

	return nil
}

// Package grblsim is an in-memory GRBL 1.1 firmware implementing
// transport.Transport. It keeps a machine position, a work offset, the modal
// parser state and a run state, answers real-time bytes, and either
// acknowledges every line at once or holds acknowledgments until the test
// releases them.
package grblsim

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/logger"
	"github.com/arloliu/go-gsender/machine"
	"github.com/arloliu/go-gsender/transport"
)

const (
	grblBanner    = "Grbl 1.1h ['$' for help]"
	grblHALBanner = "GrblHAL 1.1f ['$' or '$HELP' for help]"

	outputBuffer = 4096
)

// Option configures a Sim.
type Option func(*Sim)

// WithManualAck holds every "ok"/"error" until AckNext releases it.
func WithManualAck() Option {
	return func(s *Sim) { s.autoAck = false }
}

// WithGrblHAL makes the simulator announce itself as grblHAL and answer the
// real-time parser state query.
func WithGrblHAL() Option {
	return func(s *Sim) {
		s.banner = grblHALBanner
		s.hal = true
	}
}

// WithSilentStart suppresses the welcome banner on creation, as network
// attached controllers do.
func WithSilentStart() Option {
	return func(s *Sim) { s.silent = true }
}

// WithProbeContact makes G38.x succeed, touching at the given machine
// coordinate of the probed axis.
func WithProbeContact(at float64) Option {
	return func(s *Sim) {
		s.probeContact = at
		s.probeHits = true
	}
}

// WithLogger sets the logger used to trace traffic.
func WithLogger(l logger.Logger) Option {
	return func(s *Sim) { s.logger = l }
}

// Sim is a simulated GRBL controller.
type Sim struct {
	logger logger.Logger
	out    chan string
	done   chan struct{}
	once   sync.Once

	mu           sync.Mutex
	autoAck      bool
	hal          bool
	silent       bool
	banner       string
	probeHits    bool
	probeContact float64

	acks        []pendingAck
	buffered    int
	maxBuffered int
	lines       []string
	realtime    []byte

	state    machine.RunState
	subState int
	mpos     machine.Position
	wco      machine.Position
	modal    modalState
	ov       machine.Overrides
	toolOff  float64
	lostErr  error
}

type pendingAck struct {
	reply string
	size  int
}

var _ transport.Transport = (*Sim)(nil)

// New creates a simulator in the Idle state at the machine origin.
func New(opts ...Option) *Sim {
	s := &Sim{
		logger:  logger.GetLogger(),
		out:     make(chan string, outputBuffer),
		done:    make(chan struct{}),
		autoAck: true,
		banner:  grblBanner,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "grblsim")

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	if !s.silent {
		s.emit(s.banner)
	}

	return s
}

// ReadLine returns the next line produced by the simulator.
func (s *Sim) ReadLine() (string, error) {
	select {
	case line := <-s.out:
		return line, nil
	case <-s.done:
	}

	// drain what was produced before the connection went away
	select {
	case line := <-s.out:
		return line, nil
	default:
	}

	s.mu.Lock()
	err := s.lostErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	return "", transport.ErrClosed
}

// WriteLine feeds one line to the simulated firmware.
func (s *Sim) WriteLine(line string) error {
	if s.isClosed() {
		return transport.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("rx line", "line", line)
	s.lines = append(s.lines, line)
	s.buffered += len(line) + 1
	if s.buffered > s.maxBuffered {
		s.maxBuffered = s.buffered
	}
	s.executeLocked(line)

	return nil
}

// WriteRaw feeds real-time bytes to the simulated firmware.
func (s *Sim) WriteRaw(b []byte) error {
	if s.isClosed() {
		return transport.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range b {
		s.logger.Debug("rx realtime", "byte", fmt.Sprintf("0x%02x", c))
		s.realtime = append(s.realtime, c)
		s.realtimeLocked(c)
	}

	return nil
}

// Close ends the simulated connection.
func (s *Sim) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Disconnect simulates a cable pull: pending reads fail with an unexpected EOF.
func (s *Sim) Disconnect() {
	s.mu.Lock()
	s.lostErr = fmt.Errorf("%w: %w", transport.ErrClosed, io.ErrUnexpectedEOF)
	s.mu.Unlock()

	s.Close()
}

func (s *Sim) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// InjectLine makes the simulator send an arbitrary line to the host.
func (s *Sim) InjectLine(line string) {
	s.emit(line)
}

// AckNext releases up to n held acknowledgments and returns how many were sent.
func (s *Sim) AckNext(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for released < n && len(s.acks) > 0 {
		ack := s.acks[0]
		s.acks = s.acks[1:]
		s.buffered -= ack.size
		s.emitLocked(ack.reply)
		released++
	}

	return released
}

// HeldAcks returns the number of acknowledgments waiting for AckNext.
func (s *Sim) HeldAcks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.acks)
}

// MaxBuffered returns the largest number of unacknowledged line bytes the
// simulator ever held.
func (s *Sim) MaxBuffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.maxBuffered
}

// Lines returns a copy of every line written by the host.
func (s *Sim) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.lines...)
}

// Realtime returns a copy of every real-time byte written by the host.
func (s *Sim) Realtime() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.realtime...)
}

// HasRealtime reports whether byte b was written by the host.
func (s *Sim) HasRealtime(b byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return strings.IndexByte(string(s.realtime), b) >= 0
}

// TriggerAlarm raises an alarm as a limit switch would.
func (s *Sim) TriggerAlarm(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state, s.subState = machine.RunStateAlarm, 0
	s.emitLocked(fmt.Sprintf("ALARM:%d", code))
}

// SetState forces the run state reported by the next status report.
func (s *Sim) SetState(state machine.RunState, sub int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state, s.subState = state, sub
}

// State returns the simulated run state.
func (s *Sim) State() machine.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// MachinePosition returns the simulated machine position in millimeters.
func (s *Sim) MachinePosition() machine.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mpos
}

// WorkOffset returns the simulated work coordinate offset in millimeters.
func (s *Sim) WorkOffset() machine.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wco
}

// ToolOffset returns the dynamic tool length offset in millimeters.
func (s *Sim) ToolOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.toolOff
}

func (s *Sim) emit(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emitLocked(line)
}

func (s *Sim) emitLocked(line string) {
	if s.isClosed() {
		return
	}
	s.logger.Debug("tx", "line", line)

	select {
	case s.out <- line:
	case <-s.done:
	}
}

// replyLocked acknowledges the line just executed.
func (s *Sim) replyLocked(reply string, size int) {
	if s.autoAck {
		s.buffered -= size
		s.emitLocked(reply)
		return
	}

	s.acks = append(s.acks, pendingAck{reply: reply, size: size})
}

func (s *Sim) resetLocked() {
	s.state, s.subState = machine.RunStateIdle, 0
	if s.mpos.IsEmpty() {
		s.mpos = machine.XYZ(machine.UnitsMM, 0, 0, 0)
		s.wco = machine.XYZ(machine.UnitsMM, 0, 0, 0)
	}
	s.modal = defaultModal()
	s.ov = machine.DefaultOverrides
	s.toolOff = 0
	s.acks = nil
	s.buffered = 0
}

func (s *Sim) statusLocked() string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(s.state.String())
	if s.state == machine.RunStateHold || s.state == machine.RunStateDoor {
		fmt.Fprintf(&sb, ":%d", s.subState)
	}
	sb.WriteString("|MPos:")
	sb.WriteString(coords(s.mpos))
	fmt.Fprintf(&sb, "|Bf:15,%d", 128-s.buffered)
	fmt.Fprintf(&sb, "|FS:%s,%s", command.FormatNumber(s.modal.feed), command.FormatNumber(s.modal.speed))
	fmt.Fprintf(&sb, "|Ov:%d,%d,%d", s.ov.Feed, s.ov.Rapid, s.ov.Spindle)
	sb.WriteString("|WCO:")
	sb.WriteString(coords(s.wco))
	sb.WriteByte('>')

	return sb.String()
}

func coords(p machine.Position) string {
	parts := make([]string, 0, 3)
	for _, a := range machine.LinearAxes() {
		parts = append(parts, fmt.Sprintf("%.3f", p.Value(a)))
	}

	return strings.Join(parts, ",")
}

package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-gsender/logger"
	"github.com/arloliu/go-gsender/machine"
	"github.com/arloliu/go-gsender/transport"
)

// Default settings.
const (
	DefaultFirmware           = "grbl"
	DefaultStatusPollInterval = 250 * time.Millisecond
	DefaultConnectTimeout     = 5 * time.Second
	DefaultCloseTimeout       = 3 * time.Second
	DefaultSendTimeout        = 3 * time.Second
	DefaultProbeTimeout       = 60 * time.Second
	DefaultSafetyHeight       = 5.0
	DefaultRequestQueueSize   = 16

	MinStatusPollInterval = 20 * time.Millisecond
	MaxBufferCapacity     = 1 << 16
)

// Settings holds the configuration of a Controller. It is immutable once
// built; use NewSettings with options to derive a new one.
type Settings struct {
	firmware           string
	bufferCapacity     int // 0 means dialect default
	statusPollInterval time.Duration
	units              machine.Units

	connectTimeout time.Duration
	closeTimeout   time.Duration
	sendTimeout    time.Duration
	probeTimeout   time.Duration

	safetyHeight     float64
	pauseOnError     bool
	verbose          bool
	requestQueueSize int

	opener transport.Opener
	logger logger.Logger
}

// NewSettings creates settings from the defaults and the given options,
// applied in order.
func NewSettings(opts ...Option) (*Settings, error) {
	s := &Settings{
		firmware:           DefaultFirmware,
		statusPollInterval: DefaultStatusPollInterval,
		units:              machine.UnitsMM,
		connectTimeout:     DefaultConnectTimeout,
		closeTimeout:       DefaultCloseTimeout,
		sendTimeout:        DefaultSendTimeout,
		probeTimeout:       DefaultProbeTimeout,
		safetyHeight:       DefaultSafetyHeight,
		requestQueueSize:   DefaultRequestQueueSize,
		opener:             transport.Open,
		logger:             logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Firmware returns the default dialect name used when Connect gets none.
func (s *Settings) Firmware() string { return s.firmware }

// BufferCapacity returns the configured receive buffer capacity, 0 meaning
// the dialect default.
func (s *Settings) BufferCapacity() int { return s.bufferCapacity }

// StatusPollInterval returns the interval between status queries, 0 meaning disabled.
func (s *Settings) StatusPollInterval() time.Duration { return s.statusPollInterval }

// Units returns the units the firmware reports positions in.
func (s *Settings) Units() machine.Units { return s.units }

// ConnectTimeout returns the time allowed for opening the port and the handshake.
func (s *Settings) ConnectTimeout() time.Duration { return s.connectTimeout }

// CloseTimeout returns the time Disconnect waits for the session tasks.
func (s *Settings) CloseTimeout() time.Duration { return s.closeTimeout }

// SendTimeout returns the time an ad-hoc line may wait for the sender.
func (s *Settings) SendTimeout() time.Duration { return s.sendTimeout }

// ProbeTimeout returns the time Probe waits for the probe report.
func (s *Settings) ProbeTimeout() time.Duration { return s.probeTimeout }

// SafetyHeight returns the work Z height used by ReturnToZero.
func (s *Settings) SafetyHeight() float64 { return s.safetyHeight }

// PauseOnError reports whether a program error pauses the stream.
func (s *Settings) PauseOnError() bool { return s.pauseOnError }

// Verbose reports whether every line on the wire is dispatched to listeners.
func (s *Settings) Verbose() bool { return s.verbose }

// RequestQueueSize returns the size of the ad-hoc line request channel.
func (s *Settings) RequestQueueSize() int { return s.requestQueueSize }

// Opener returns the function opening the transport.
func (s *Settings) Opener() transport.Opener { return s.opener }

// GetLogger returns the configured logger.
func (s *Settings) GetLogger() logger.Logger { return s.logger }

// Option is a functional option for configuring Settings.
type Option interface {
	apply(*Settings) error
}

type optFunc func(*Settings) error

func (f optFunc) apply(s *Settings) error { return f(s) }

// WithFirmware sets the default dialect name.
func WithFirmware(name string) Option {
	return optFunc(func(s *Settings) error {
		if name == "" {
			return errors.New("controller: firmware name must not be empty")
		}
		s.firmware = name

		return nil
	})
}

// WithBufferCapacity overrides the dialect's receive buffer capacity.
// Zero restores the dialect default.
func WithBufferCapacity(n int) Option {
	return optFunc(func(s *Settings) error {
		if n < 0 || n > MaxBufferCapacity {
			return fmt.Errorf("controller: buffer capacity %d out of range [0, %d]", n, MaxBufferCapacity)
		}
		s.bufferCapacity = n

		return nil
	})
}

// WithStatusPollInterval sets the status query interval. Zero disables polling.
func WithStatusPollInterval(d time.Duration) Option {
	return optFunc(func(s *Settings) error {
		if d != 0 && d < MinStatusPollInterval {
			return fmt.Errorf("controller: status poll interval %v below minimum %v", d, MinStatusPollInterval)
		}
		s.statusPollInterval = d

		return nil
	})
}

// WithUnits sets the units the firmware reports positions in.
func WithUnits(u machine.Units) Option {
	return optFunc(func(s *Settings) error {
		if u != machine.UnitsMM && u != machine.UnitsInch {
			return fmt.Errorf("controller: invalid units %s", u)
		}
		s.units = u

		return nil
	})
}

// WithConnectTimeout sets the time allowed for opening the port and the handshake.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(s *Settings) error {
		if d <= 0 {
			return errors.New("controller: connect timeout must be positive")
		}
		s.connectTimeout = d

		return nil
	})
}

// WithCloseTimeout sets the time Disconnect waits for the session tasks.
func WithCloseTimeout(d time.Duration) Option {
	return optFunc(func(s *Settings) error {
		if d <= 0 {
			return errors.New("controller: close timeout must be positive")
		}
		s.closeTimeout = d

		return nil
	})
}

// WithSendTimeout sets the time an ad-hoc line may wait for the sender.
func WithSendTimeout(d time.Duration) Option {
	return optFunc(func(s *Settings) error {
		if d <= 0 {
			return errors.New("controller: send timeout must be positive")
		}
		s.sendTimeout = d

		return nil
	})
}

// WithProbeTimeout sets the time Probe waits for the probe report.
func WithProbeTimeout(d time.Duration) Option {
	return optFunc(func(s *Settings) error {
		if d <= 0 {
			return errors.New("controller: probe timeout must be positive")
		}
		s.probeTimeout = d

		return nil
	})
}

// WithSafetyHeight sets the work Z height ReturnToZero raises the tool to.
func WithSafetyHeight(h float64) Option {
	return optFunc(func(s *Settings) error {
		s.safetyHeight = h
		return nil
	})
}

// WithPauseOnError pauses the stream with a feed hold when a program line fails.
func WithPauseOnError(enabled bool) Option {
	return optFunc(func(s *Settings) error {
		s.pauseOnError = enabled
		return nil
	})
}

// WithVerbose dispatches every sent and received line to listeners.
func WithVerbose(enabled bool) Option {
	return optFunc(func(s *Settings) error {
		s.verbose = enabled
		return nil
	})
}

// WithRequestQueueSize sets the size of the ad-hoc line request channel.
func WithRequestQueueSize(size int) Option {
	return optFunc(func(s *Settings) error {
		if size < 1 {
			return errors.New("controller: request queue size must be >= 1")
		}
		s.requestQueueSize = size

		return nil
	})
}

// WithOpener replaces the function opening the transport, e.g. with an
// in-memory firmware in tests.
func WithOpener(opener transport.Opener) Option {
	return optFunc(func(s *Settings) error {
		if opener == nil {
			return errors.New("controller: opener must not be nil")
		}
		s.opener = opener

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(s *Settings) error {
		if l == nil {
			return errors.New("controller: logger must not be nil")
		}
		s.logger = l

		return nil
	})
}

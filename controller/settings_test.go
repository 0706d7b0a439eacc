package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gsender/logger"
	"github.com/arloliu/go-gsender/machine"
	"github.com/arloliu/go-gsender/transport"
)

func TestNewSettingsDefaults(t *testing.T) {
	require := require.New(t)

	s, err := NewSettings()
	require.NoError(err)
	require.Equal(DefaultFirmware, s.Firmware())
	require.Equal(0, s.BufferCapacity())
	require.Equal(DefaultStatusPollInterval, s.StatusPollInterval())
	require.Equal(machine.UnitsMM, s.Units())
	require.Equal(DefaultConnectTimeout, s.ConnectTimeout())
	require.Equal(DefaultCloseTimeout, s.CloseTimeout())
	require.Equal(DefaultSendTimeout, s.SendTimeout())
	require.Equal(DefaultProbeTimeout, s.ProbeTimeout())
	require.InDelta(DefaultSafetyHeight, s.SafetyHeight(), 1e-9)
	require.False(s.PauseOnError())
	require.False(s.Verbose())
	require.Equal(DefaultRequestQueueSize, s.RequestQueueSize())
	require.NotNil(s.Opener())
	require.NotNil(s.GetLogger())
}

func TestNewSettingsOptions(t *testing.T) {
	require := require.New(t)

	var opened bool
	opener := func(_ context.Context, _ string, _ int) (transport.Transport, error) {
		opened = true
		return nil, transport.ErrClosed
	}
	l := logger.NewMockLogger()

	s, err := NewSettings(
		WithFirmware("grblhal"),
		WithBufferCapacity(1024),
		WithStatusPollInterval(0),
		WithUnits(machine.UnitsInch),
		WithConnectTimeout(time.Second),
		WithCloseTimeout(2*time.Second),
		WithSendTimeout(3*time.Second),
		WithProbeTimeout(4*time.Second),
		WithSafetyHeight(0.5),
		WithPauseOnError(true),
		WithVerbose(true),
		WithRequestQueueSize(4),
		WithOpener(opener),
		WithLogger(l),
	)
	require.NoError(err)
	require.Equal("grblhal", s.Firmware())
	require.Equal(1024, s.BufferCapacity())
	require.Equal(time.Duration(0), s.StatusPollInterval())
	require.Equal(machine.UnitsInch, s.Units())
	require.Equal(time.Second, s.ConnectTimeout())
	require.Equal(2*time.Second, s.CloseTimeout())
	require.Equal(3*time.Second, s.SendTimeout())
	require.Equal(4*time.Second, s.ProbeTimeout())
	require.InDelta(0.5, s.SafetyHeight(), 1e-9)
	require.True(s.PauseOnError())
	require.True(s.Verbose())
	require.Equal(4, s.RequestQueueSize())
	require.Same(l, s.GetLogger())

	_, _ = s.Opener()(context.Background(), "x", 0)
	require.True(opened)
}

func TestNewSettingsInvalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty firmware", WithFirmware("")},
		{"negative capacity", WithBufferCapacity(-1)},
		{"huge capacity", WithBufferCapacity(MaxBufferCapacity + 1)},
		{"fast poll", WithStatusPollInterval(time.Millisecond)},
		{"unknown units", WithUnits(machine.UnitsUnknown)},
		{"zero connect timeout", WithConnectTimeout(0)},
		{"zero close timeout", WithCloseTimeout(0)},
		{"negative send timeout", WithSendTimeout(-time.Second)},
		{"zero probe timeout", WithProbeTimeout(0)},
		{"zero request queue", WithRequestQueueSize(0)},
		{"nil opener", WithOpener(nil)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSettings(tt.opt)
			require.Error(t, err)
			require.Nil(t, s)
		})
	}
}

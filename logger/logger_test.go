package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		require.NoError(err, name)
		require.Equal(want, got, name)
	}

	_, err := ParseLevel("verbose")
	require.Error(err)
}

func TestSlogWithWriter(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false, false)

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("session", "abc").Info("connected", "port", "/dev/ttyUSB0")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("connected", rec["msg"])
	require.Equal("abc", rec["session"])
	require.Equal("/dev/ttyUSB0", rec["port"])
	require.Contains(rec, "ts")

	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, l.Level())
}

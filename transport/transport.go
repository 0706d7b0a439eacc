// Package transport provides the byte pipe between the controller and the
// firmware: a line-oriented, in-order, full-duplex connection over a serial
// port, a TCP socket or a WebSocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned by every operation on a closed or lost transport.
	ErrClosed = errors.New("transport: closed")
	// ErrInvalidPort is returned when a port address cannot be used.
	ErrInvalidPort = errors.New("transport: invalid port")
)

// Transport is a full-duplex line connection to firmware.
//
// ReadLine may be called from one goroutine while WriteLine and WriteRaw are
// called from others; writes are serialized by the implementation so a
// real-time byte never lands in the middle of a line.
type Transport interface {
	// ReadLine blocks until a complete line arrives and returns it without
	// the line terminator.
	ReadLine() (string, error)
	// WriteLine writes text followed by a newline.
	WriteLine(line string) error
	// WriteRaw writes bytes as they are, used for real-time commands.
	WriteRaw(b []byte) error
	// Close releases the connection and unblocks a pending ReadLine.
	Close() error
}

// Opener opens a transport for a port address.
type Opener func(ctx context.Context, port string, baudRate int) (Transport, error)

var _ Opener = Open

const (
	schemeTCP    = "tcp://"
	schemeTelnet = "telnet://"
	schemeWS     = "ws://"
	schemeWSS    = "wss://"
)

// Open connects to port. The address selects the medium:
//
//	tcp://host:port, telnet://host:port  raw TCP socket
//	ws://host/path, wss://host/path      WebSocket
//	anything else                        serial device at baudRate
func Open(ctx context.Context, port string, baudRate int) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port = strings.TrimSpace(port)
	if port == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidPort)
	}

	switch {
	case strings.HasPrefix(port, schemeTCP):
		return OpenTCP(ctx, strings.TrimPrefix(port, schemeTCP))
	case strings.HasPrefix(port, schemeTelnet):
		return OpenTCP(ctx, strings.TrimPrefix(port, schemeTelnet))
	case strings.HasPrefix(port, schemeWS), strings.HasPrefix(port, schemeWSS):
		return OpenWebSocket(ctx, port)
	default:
		return OpenSerial(port, baudRate)
	}
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const dialTimeout = 10 * time.Second

// OpenTCP connects to a firmware exposing its console on a raw TCP socket,
// as ESP32 based controllers do over telnet.
func OpenTCP(ctx context.Context, address string) (Transport, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPort, address, err)
	}

	dialer := net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		// real-time bytes must not wait for Nagle
		_ = tcp.SetNoDelay(true)
	}

	return NewLineTransport(conn), nil
}

// wsTransport carries the firmware console over WebSocket messages. A
// message may hold several lines or a fragment of one.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool

	pending []string
	partial strings.Builder
}

var _ Transport = (*wsTransport)(nil)

// OpenWebSocket connects to a firmware WebSocket console such as FluidNC's.
func OpenWebSocket(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: websocket %s: status %d: %w", url, resp.StatusCode, err)
		}

		return nil, fmt.Errorf("transport: websocket %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadLine() (string, error) {
	for len(t.pending) == 0 {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, net.ErrClosed) {
				return "", fmt.Errorf("%w: %w", ErrClosed, err)
			}

			return "", err
		}
		t.split(string(data))
	}

	line := t.pending[0]
	t.pending = t.pending[1:]

	return line, nil
}

// split appends the complete lines of data to pending and keeps the
// unterminated tail for the next message.
func (t *wsTransport) split(data string) {
	for {
		i := strings.IndexByte(data, '\n')
		if i < 0 {
			t.partial.WriteString(data)
			return
		}

		t.partial.WriteString(data[:i])
		t.pending = append(t.pending, strings.TrimRight(t.partial.String(), "\r"))
		t.partial.Reset()
		data = data[i+1:]
	}
}

func (t *wsTransport) WriteLine(line string) error {
	return t.write(websocket.TextMessage, []byte(line+"\n"))
}

func (t *wsTransport) WriteRaw(b []byte) error {
	return t.write(websocket.BinaryMessage, b)
}

func (t *wsTransport) write(messageType int, b []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteMessage(messageType, b); err != nil {
		if t.closed.Load() {
			return fmt.Errorf("%w: %w", ErrClosed, err)
		}

		return err
	}

	return nil
}

func (t *wsTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()

	return t.conn.Close()
}

package transport

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestLineTransport(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	tr := NewLineTransport(client)

	go func() {
		_, _ = server.Write([]byte("ok\r\n<Idle|MPos:0,0,0>\n"))
	}()

	line, err := tr.ReadLine()
	require.NoError(err)
	require.Equal("ok", line)
	line, err = tr.ReadLine()
	require.NoError(err)
	require.Equal("<Idle|MPos:0,0,0>", line)

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		received <- string(buf[:n])
	}()
	require.NoError(tr.WriteLine("G90"))
	require.Equal("G90\n", <-received)

	go func() {
		buf := make([]byte, 1)
		n, _ := server.Read(buf)
		received <- string(buf[:n])
	}()
	require.NoError(tr.WriteRaw([]byte{'?'}))
	require.Equal("?", <-received)

	require.NoError(tr.Close())
	require.NoError(tr.Close())

	_, err = tr.ReadLine()
	require.ErrorIs(err, ErrClosed)
	require.ErrorIs(tr.WriteLine("G91"), ErrClosed)
}

func TestLineTransportPeerClosed(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	tr := NewLineTransport(client)
	require.NoError(server.Close())

	_, err := tr.ReadLine()
	require.ErrorIs(err, ErrClosed)
}

func TestOpenTCP(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		_, _ = conn.Write([]byte("Grbl 1.1h ['$' for help]\r\n"))
		line, _ := bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte("echo " + line))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := Open(ctx, "tcp://"+ln.Addr().String(), 0)
	require.NoError(err)
	defer tr.Close()

	line, err := tr.ReadLine()
	require.NoError(err)
	require.Equal("Grbl 1.1h ['$' for help]", line)

	require.NoError(tr.WriteLine("$I"))
	line, err = tr.ReadLine()
	require.NoError(err)
	require.Equal("echo $I", line)
}

func TestOpenInvalid(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	_, err := Open(ctx, "  ", 115200)
	require.ErrorIs(err, ErrInvalidPort)

	_, err = Open(ctx, "tcp://no-port", 0)
	require.ErrorIs(err, ErrInvalidPort)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Open(canceled, "tcp://127.0.0.1:1", 0)
	require.ErrorIs(err, context.Canceled)
}

func TestOpenWebSocket(t *testing.T) {
	require := require.New(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// one line split over two messages, then two lines in one message
		_ = conn.WriteMessage(websocket.TextMessage, []byte("Grbl 1.1h "))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("['$' for help]\r\n"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("ok\nok\n"))

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				_ = conn.WriteMessage(websocket.TextMessage, []byte("raw "+string(data)+"\n"))
				continue
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte("line "+string(data)))
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := Open(ctx, "ws://"+strings.TrimPrefix(srv.URL, "http://"), 0)
	require.NoError(err)
	defer tr.Close()

	for _, want := range []string{"Grbl 1.1h ['$' for help]", "ok", "ok"} {
		line, err := tr.ReadLine()
		require.NoError(err)
		require.Equal(want, line)
	}

	require.NoError(tr.WriteLine("G90"))
	line, err := tr.ReadLine()
	require.NoError(err)
	require.Equal("line G90", line)

	require.NoError(tr.WriteRaw([]byte("?")))
	line, err = tr.ReadLine()
	require.NoError(err)
	require.Equal("raw ?", line)

	require.NoError(tr.Close())
	require.ErrorIs(tr.WriteLine("G91"), ErrClosed)
}

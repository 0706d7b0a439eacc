package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// lineTransport turns a byte stream into a Transport.
type lineTransport struct {
	rwc     io.ReadWriteCloser
	reader  *bufio.Reader
	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ Transport = (*lineTransport)(nil)

// NewLineTransport wraps a byte stream such as a serial port or a socket.
func NewLineTransport(rwc io.ReadWriteCloser) Transport {
	return &lineTransport{
		rwc:    rwc,
		reader: bufio.NewReaderSize(rwc, 4096),
	}
}

func (t *lineTransport) ReadLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil {
		if t.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return "", fmt.Errorf("%w: %w", ErrClosed, err)
		}

		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (t *lineTransport) WriteLine(line string) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	return t.write(buf)
}

func (t *lineTransport) WriteRaw(b []byte) error {
	return t.write(b)
}

func (t *lineTransport) write(b []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.rwc.Write(b); err != nil {
		if t.closed.Load() || errors.Is(err, io.ErrClosedPipe) {
			return fmt.Errorf("%w: %w", ErrClosed, err)
		}

		return err
	}

	return nil
}

func (t *lineTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	return t.rwc.Close()
}

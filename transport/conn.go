package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// DefaultConnectTimeout is the default TCP dial timeout.
const DefaultConnectTimeout = 3 * time.Second

// connTransport adapts a net.Conn to Transport.
type connTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	closed atomic.Bool
}

var _ Transport = (*connTransport)(nil)

// NewConnTransport wraps conn as a Transport. Read deadlines are applied
// with conn.SetReadDeadline before each byte.
func NewConnTransport(conn net.Conn) Transport {
	return &connTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (t *connTransport) ReadByteUntil(deadline time.Time) (byte, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}

	// A buffered byte is returned without touching the deadline.
	if t.reader.Buffered() > 0 {
		return t.reader.ReadByte()
	}

	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, t.mapErr(err)
	}

	b, err := t.reader.ReadByte()
	if err != nil {
		return 0, t.mapErr(err)
	}

	return b, nil
}

func (t *connTransport) Write(p []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}

	for written := 0; written < len(p); {
		n, err := t.conn.Write(p[written:])
		written += n

		if err != nil {
			return t.mapErr(err)
		}
	}

	return nil
}

// Flush discards input already buffered in user space.
func (t *connTransport) Flush() error {
	if n := t.reader.Buffered(); n > 0 {
		_, _ = t.reader.Discard(n)
	}

	return nil
}

func (t *connTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

func (t *connTransport) mapErr(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrReadTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrReadTimeout
	}

	// the peer hung up
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || t.closed.Load() {
		return ErrClosed
	}

	return err
}

// TCPDialer connects to a serial-to-TCP bridge (ser2net, socat) or to a
// simulated device listening on TCP.
type TCPDialer struct {
	Addr           string
	ConnectTimeout time.Duration
}

var _ Dialer = TCPDialer{}

// Dial opens a TCP connection to d.Addr.
func (d TCPDialer) Dial(ctx context.Context) (Transport, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(dialCtx, "tcp", d.Addr)
	if err != nil {
		return nil, err
	}

	return NewConnTransport(conn), nil
}

// String returns "tcp://addr".
func (d TCPDialer) String() string {
	return "tcp://" + d.Addr
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

// Serial port defaults.
const (
	DefaultBaud = 9600

	// DefaultPollInterval is the read timeout configured on the port. ReadByteUntil
	// deadlines are honored with this granularity; the termios driver rounds
	// it to a multiple of 100ms.
	DefaultPollInterval = 100 * time.Millisecond
)

// SerialDialer opens a local serial port.
type SerialDialer struct {
	Port         string
	Baud         int
	PollInterval time.Duration
}

var _ Dialer = SerialDialer{}

// With returns a copy of d with port and baud overridden when non-zero.
// It is used to reopen a link with caller-supplied parameters.
func (d SerialDialer) With(port string, baud int) SerialDialer {
	if port != "" {
		d.Port = port
	}
	if baud > 0 {
		d.Baud = baud
	}

	return d
}

// Dial opens the serial port. The context is only checked before opening;
// opening a local device does not block.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.Port == "" {
		return nil, errors.New("transport: serial port name is empty")
	}

	baud := d.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}

	poll := d.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        d.Port,
		Baud:        baud,
		ReadTimeout: poll,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", d.Port, err)
	}

	return &serialTransport{port: port, name: d.Port}, nil
}

// String returns "port@baud".
func (d SerialDialer) String() string {
	baud := d.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}

	return fmt.Sprintf("%s@%d", d.Port, baud)
}

type serialTransport struct {
	port    *serial.Port
	name    string
	buf     [64]byte
	pending []byte
	closed  atomic.Bool
}

var (
	_ Transport  = (*serialTransport)(nil)
	_ Flusher    = (*serialTransport)(nil)
	_ ResetLiner = (*serialTransport)(nil)
)

// ReadByteUntil polls the port until a byte arrives or the deadline passes.
//
// The port is opened with a read timeout, so each Read returns after at most
// one poll interval; an empty read is reported as io.EOF on POSIX systems
// and as (0, nil) on Windows.
func (t *serialTransport) ReadByteUntil(deadline time.Time) (byte, error) {
	for {
		if t.closed.Load() {
			return 0, ErrClosed
		}

		if len(t.pending) > 0 {
			b := t.pending[0]
			t.pending = t.pending[1:]

			return b, nil
		}

		if !time.Now().Before(deadline) {
			return 0, ErrReadTimeout
		}

		n, err := t.port.Read(t.buf[:])
		if n > 0 {
			t.pending = t.buf[:n]

			continue
		}

		if err != nil && !errors.Is(err, io.EOF) {
			if t.closed.Load() {
				return 0, ErrClosed
			}

			return 0, fmt.Errorf("transport: read %s: %w", t.name, err)
		}
	}
}

func (t *serialTransport) Write(p []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}

	for written := 0; written < len(p); {
		n, err := t.port.Write(p[written:])
		written += n

		if err != nil {
			return fmt.Errorf("transport: write %s: %w", t.name, err)
		}
	}

	return nil
}

// Flush discards data received but not read and data written but not sent.
func (t *serialTransport) Flush() error {
	t.pending = nil

	return t.port.Flush()
}

// PulseReset toggles DTR on the device node.
func (t *serialTransport) PulseReset(d time.Duration) error {
	return pulseDTR(t.name, d)
}

func (t *serialTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	return t.port.Close()
}

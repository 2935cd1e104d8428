// Package transport provides the byte channels a link runs over.
//
// A [Transport] is an open, half-duplex byte channel with per-read deadlines.
// A [Dialer] opens a new Transport and remembers the parameters used, so the
// link can reopen the same channel after a fault.
//
// Implementations:
//
//   - [SerialDialer] opens a local serial port (github.com/tarm/serial).
//   - [TCPDialer] connects to a serial-to-TCP bridge such as ser2net.
//   - [NewConnTransport] wraps any net.Conn, e.g. one end of net.Pipe in tests.
//
// Optional capabilities are discovered by type assertion: a transport that
// can pulse a hardware reset line implements [ResetLiner], and one that can
// discard buffered input implements [Flusher].
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReadTimeout is returned by ReadByteUntil when the deadline passes
	// without a byte arriving.
	ErrReadTimeout = errors.New("transport: read timeout")

	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrResetUnsupported is returned by PulseReset when the platform or
	// device cannot toggle a reset line.
	ErrResetUnsupported = errors.New("transport: reset line not supported")
)

// Transport is an open byte channel to the remote device.
//
// Implementations are NOT required to be goroutine-safe; the link owns the
// transport and uses it from one call at a time.
type Transport interface {
	// ReadByteUntil returns the next incoming byte, waiting until deadline.
	// It returns ErrReadTimeout when the deadline passes.
	ReadByteUntil(deadline time.Time) (byte, error)
	// Write writes all of p.
	Write(p []byte) error
	// Close releases the underlying channel.
	Close() error
}

// Dialer opens transports with a fixed set of parameters.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
	// String describes the endpoint, e.g. "/dev/ttyUSB0@9600".
	String() string
}

// ResetLiner is implemented by transports able to pulse a hardware reset
// line, e.g. DTR on a USB serial adapter wired to a microcontroller reset.
type ResetLiner interface {
	// PulseReset deasserts the line for d and then asserts it again.
	PulseReset(d time.Duration) error
}

// Flusher is implemented by transports that can discard buffered input
// and output.
type Flusher interface {
	Flush() error
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// String implements fmt.Stringer.
func (f DialerFunc) String() string {
	return fmt.Sprintf("func(%p)", f)
}

package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeTransport(t *testing.T) (Transport, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	return NewConnTransport(local), remote
}

func TestConnTransport_ReadByteUntil(t *testing.T) {
	tr, remote := newPipeTransport(t)

	go func() {
		_, _ = remote.Write([]byte("^0"))
	}()

	b, err := tr.ReadByteUntil(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, byte('^'), b)

	b, err = tr.ReadByteUntil(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, byte('0'), b)
}

func TestConnTransport_ReadTimeout(t *testing.T) {
	tr, _ := newPipeTransport(t)

	start := time.Now()
	_, err := tr.ReadByteUntil(time.Now().Add(50 * time.Millisecond))
	require.ErrorIs(t, err, ErrReadTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestConnTransport_Write(t *testing.T) {
	tr, remote := newPipeTransport(t)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 13)
		_, _ = remote.Read(buf)
		done <- buf
	}()

	require.NoError(t, tr.Write([]byte("^01|PING|*11$")))
	assert.Equal(t, "^01|PING|*11$", string(<-done))
}

func TestConnTransport_Close(t *testing.T) {
	tr, _ := newPipeTransport(t)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close(), "close is idempotent")

	_, err := tr.ReadByteUntil(time.Now().Add(time.Second))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, tr.Write([]byte("x")), ErrClosed)
}

func TestConnTransport_RemoteClosed(t *testing.T) {
	tr, remote := newPipeTransport(t)
	require.NoError(t, remote.Close())

	_, err := tr.ReadByteUntil(time.Now().Add(time.Second))
	require.ErrorIs(t, err, ErrClosed)
	assert.NotErrorIs(t, err, ErrReadTimeout)
}

func TestConnTransport_Flush(t *testing.T) {
	tr, remote := newPipeTransport(t)

	go func() {
		_, _ = remote.Write([]byte("abc"))
	}()

	b, err := tr.ReadByteUntil(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, byte('a'), b)

	fl, ok := tr.(Flusher)
	require.True(t, ok)
	require.NoError(t, fl.Flush())

	_, err = tr.ReadByteUntil(time.Now().Add(50 * time.Millisecond))
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestTCPDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	d := TCPDialer{Addr: ln.Addr().String(), ConnectTimeout: time.Second}
	assert.Equal(t, "tcp://"+ln.Addr().String(), d.String())

	tr, err := d.Dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	peer := <-accepted
	t.Cleanup(func() { _ = peer.Close() })

	_, err = peer.Write([]byte{'$'})
	require.NoError(t, err)

	b, err := tr.ReadByteUntil(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, byte('$'), b)
}

func TestTCPDialer_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = TCPDialer{Addr: addr, ConnectTimeout: 200 * time.Millisecond}.Dial(context.Background())
	assert.Error(t, err)
}

func TestSerialDialer(t *testing.T) {
	d := SerialDialer{Port: "/dev/ttyUSB0"}
	assert.Equal(t, "/dev/ttyUSB0@9600", d.String())

	d2 := d.With("", 115200)
	assert.Equal(t, "/dev/ttyUSB0@115200", d2.String())
	assert.Equal(t, "/dev/ttyACM1@9600", d.With("/dev/ttyACM1", 0).String())

	_, err := SerialDialer{}.Dial(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Dial(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialerFunc(t *testing.T) {
	tr, _ := newPipeTransport(t)

	d := DialerFunc(func(context.Context) (Transport, error) { return tr, nil })
	got, err := d.Dial(context.Background())
	require.NoError(t, err)
	assert.Same(t, tr, got)
	assert.Contains(t, d.String(), "func(")
}

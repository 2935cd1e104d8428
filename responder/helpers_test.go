package responder

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/transport"
	"github.com/stretchr/testify/require"
)

// withChecksum wraps content in markers with a correct checksum.
func withChecksum(content string) []byte {
	return fmt.Appendf(nil, "^%s*%02X$", content, frame.Checksum([]byte(content)))
}

// recordTransport records writes and never delivers bytes.
type recordTransport struct {
	mu      sync.Mutex
	writes  [][]byte
	closed  bool
	failing error
}

func (t *recordTransport) ReadByteUntil(time.Time) (byte, error) {
	return 0, transport.ErrReadTimeout
}

func (t *recordTransport) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failing != nil {
		return t.failing
	}
	t.writes = append(t.writes, append([]byte(nil), p...))

	return nil
}

func (t *recordTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	return nil
}

func (t *recordTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.writes))
	for _, w := range t.writes {
		out = append(out, string(w))
	}

	return out
}

type recordObserver struct {
	mu sync.Mutex
	tx []string
	rx []string
}

func (o *recordObserver) OnTx(_ uint8, _ bool, raw []byte) {
	o.mu.Lock()
	o.tx = append(o.tx, string(raw))
	o.mu.Unlock()
}

func (o *recordObserver) OnRx(_ uint8, _ bool, raw []byte) {
	o.mu.Lock()
	o.rx = append(o.rx, string(raw))
	o.mu.Unlock()
}

func newTestResponder(t *testing.T, disp *Dispatcher, opts ...ResponderOption) (*Responder, *recordTransport) {
	t.Helper()

	opts = append([]ResponderOption{WithLogger(logger.Nop())}, opts...)
	cfg, err := NewResponderConfig(opts...)
	require.NoError(t, err)

	tr := &recordTransport{}
	r, err := New(tr, disp, cfg)
	require.NoError(t, err)

	return r, tr
}

func pushAll(t *testing.T, r *Responder, p []byte) {
	t.Helper()

	for _, b := range p {
		require.NoError(t, r.Push(b))
	}
}

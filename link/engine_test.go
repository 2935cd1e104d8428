package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Call(t *testing.T) {
	obs := &recordObserver{}
	e, m := newTestEngine(DefaultRetryPolicy(), obs)
	tr := newFakeTransport(ack("PONG"))

	result, err := e.call(context.Background(), tr, "PING", "")
	require.NoError(t, err)
	assert.Equal(t, "PONG", result)
	assert.Equal(t, []string{"^01|PING|*11$"}, tr.Writes())

	assert.Equal(t, []string{"^01|PING|*11$"}, obs.tx)
	assert.Equal(t, []string{string(frame.MustEncode(1, "ACK", "PONG"))}, obs.rx)
	assert.Equal(t, uint64(1), m.FrameSendCount.Load())
	assert.Equal(t, uint64(1), m.FrameRecvCount.Load())

	// the next call allocates the next sequence
	_, err = e.call(context.Background(), tr, "R", "-90")
	require.NoError(t, err)
	assert.Equal(t, string(frame.MustEncode(2, "R", "-90")), tr.Writes()[1])
}

func TestEngine_Backoff(t *testing.T) {
	e, m := newTestEngine(RetryPolicy{BaseTimeout: 600 * time.Millisecond, MaxRetries: 3, MaxFastResends: 16}, nil)
	e.now = func() time.Time { return t0 }
	tr := newFakeTransport(nil)

	_, err := e.call(context.Background(), tr, "PING", "")
	require.ErrorIs(t, err, ErrTimeout)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, 2400*time.Millisecond, te.Timeout)

	require.Len(t, tr.Writes(), 3, "exactly max_retries sends")
	for _, w := range tr.Writes() {
		assert.Equal(t, "^01|PING|*11$", w, "retries reuse the sequence")
	}

	var waits []time.Duration
	for _, d := range tr.deadlines {
		waits = append(waits, d.Sub(t0))
	}
	assert.Equal(t, []time.Duration{600 * time.Millisecond, 1200 * time.Millisecond, 2400 * time.Millisecond}, waits)
	assert.Equal(t, uint64(2), m.RetryCount.Load())
}

func TestEngine_BadChecksumShortcut(t *testing.T) {
	e, m := newTestEngine(DefaultRetryPolicy(), nil)
	e.now = func() time.Time { return t0 }

	tr := newFakeTransport(func(n int, req []byte) []byte {
		if n == 1 {
			return frame.MustEncode(seqOf(req), "NACK", "BAD_CS")
		}

		return frame.MustEncode(seqOf(req), "ACK", "OK")
	})

	result, err := e.call(context.Background(), tr, "V", "160")
	require.NoError(t, err)
	assert.Equal(t, "OK", result)

	writes := tr.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, writes[0], writes[1])
	assert.Equal(t, uint64(1), m.FastResendCount.Load())
	assert.Zero(t, m.RetryCount.Load())

	// both sends waited the base timeout
	require.NotEmpty(t, tr.deadlines)
	for _, d := range tr.deadlines {
		assert.Equal(t, t0.Add(DefaultBaseTimeout), d)
	}
}

func TestEngine_CorruptedReplyWithOurSequence(t *testing.T) {
	e, m := newTestEngine(DefaultRetryPolicy(), nil)

	tr := newFakeTransport(func(n int, req []byte) []byte {
		reply := frame.MustEncode(seqOf(req), "ACK", "OK")
		if n == 1 {
			reply[8] ^= 0x04 // corrupt the payload
		}

		return reply
	})

	result, err := e.call(context.Background(), tr, "S", "")
	require.NoError(t, err)
	assert.Equal(t, "OK", result)
	assert.Len(t, tr.Writes(), 2)
	assert.Equal(t, uint64(1), m.DecodeErrorCount.Load())
	assert.Equal(t, uint64(1), m.FastResendCount.Load())
}

func TestEngine_StaleAndGarbageSkipped(t *testing.T) {
	obs := &recordObserver{}
	e, m := newTestEngine(DefaultRetryPolicy(), obs)

	tr := newFakeTransport(func(_ int, req []byte) []byte {
		seq := seqOf(req)
		var out []byte
		out = append(out, "noise^zz|ACK*00$"...)
		out = append(out, frame.MustEncode(seq-1, "ACK", "old")...)
		out = append(out, frame.MustEncode(seq, "ACK", "new")...)

		return out
	})

	result, err := e.call(context.Background(), tr, "STATUS", "")
	require.NoError(t, err)
	assert.Equal(t, "new", result)
	assert.Len(t, tr.Writes(), 1)
	assert.Equal(t, uint64(1), m.StaleFrameCount.Load())
	assert.Equal(t, uint64(1), m.DecodeErrorCount.Load())

	// the garbage span carries no sequence; the others do
	require.Len(t, obs.rxSeq, 3)
	assert.Equal(t, "^zz|ACK*00$", obs.rx[0])
	assert.Nil(t, obs.rxSeq[0])
	require.NotNil(t, obs.rxSeq[1])
	require.NotNil(t, obs.rxSeq[2])
	assert.Equal(t, seqOf(tr.writes[0]), *obs.rxSeq[2])
}

func TestEngine_SemanticError(t *testing.T) {
	e, _ := newTestEngine(DefaultRetryPolicy(), nil)
	tr := newFakeTransport(func(_ int, req []byte) []byte {
		return frame.MustEncode(seqOf(req), "NACK", "BAD_M")
	})

	_, err := e.call(context.Background(), tr, "M", "99999")
	require.ErrorIs(t, err, ErrSemantic)
	assert.Equal(t, "BAD_M", ReasonOf(err))
	assert.Len(t, tr.Writes(), 1)
}

func TestEngine_TransportErrors(t *testing.T) {
	lineErr := errors.New("line fault")

	t.Run("write", func(t *testing.T) {
		e, m := newTestEngine(RetryPolicy{BaseTimeout: time.Millisecond, MaxRetries: 2}, nil)
		tr := newFakeTransport(nil)
		tr.writeErr = lineErr

		_, err := e.call(context.Background(), tr, "PING", "")
		require.ErrorIs(t, err, ErrTimeout)
		require.ErrorIs(t, err, lineErr)
		assert.Zero(t, m.FrameSendCount.Load())
	})

	t.Run("read", func(t *testing.T) {
		e, _ := newTestEngine(RetryPolicy{BaseTimeout: time.Millisecond, MaxRetries: 2}, nil)
		tr := newFakeTransport(nil)
		tr.readErr = transport.ErrClosed

		_, err := e.call(context.Background(), tr, "PING", "")
		require.ErrorIs(t, err, ErrTimeout)
		require.ErrorIs(t, err, transport.ErrClosed)
		assert.Len(t, tr.Writes(), 2)
	})
}

func TestEngine_ContextCancelled(t *testing.T) {
	e, _ := newTestEngine(DefaultRetryPolicy(), nil)
	tr := newFakeTransport(ack("PONG"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.call(ctx, tr, "PING", "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tr.Writes())
}

func TestEngine_InvalidField(t *testing.T) {
	e, _ := newTestEngine(DefaultRetryPolicy(), nil)
	tr := newFakeTransport(ack("OK"))

	_, err := e.call(context.Background(), tr, "V", "1*2")
	require.ErrorIs(t, err, frame.ErrInvalidField)
	assert.Empty(t, tr.Writes())
}

func TestEngine_StartingSequence(t *testing.T) {
	seedSequences(t, 0x7F, 0xFF)

	e, _ := newTestEngine(DefaultRetryPolicy(), nil)
	tr := newFakeTransport(ack("PONG"))
	_, err := e.call(context.Background(), tr, "PING", "")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), seqOf(tr.writes[0]))

	// wraps to 0 on the first request
	e, _ = newTestEngine(DefaultRetryPolicy(), nil)
	_, err = e.call(context.Background(), tr, "PING", "")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x00), seqOf(tr.writes[1]))
}

func TestRandomSeq_Varies(t *testing.T) {
	seen := make(map[uint8]struct{})
	for range 64 {
		seen[randomSeq()] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "starting sequences must not be fixed")
}

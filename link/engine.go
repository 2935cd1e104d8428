package link

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/transport"
)

// Observer receives every frame the link writes or reads. Seq is the
// sequence recovered from raw and is only meaningful when seqOK is true.
//
// Observers are invoked synchronously from the calling goroutine.
type Observer interface {
	OnTx(seq uint8, seqOK bool, raw []byte)
	OnRx(seq uint8, seqOK bool, raw []byte)
}

// engine drives PendingRequest over a transport.
//
// engine is NOT goroutine-safe; the client serializes calls.
type engine struct {
	policy   RetryPolicy
	seq      *frame.SeqAllocator
	reasm    *frame.Reassembler
	observer Observer
	metrics  *Metrics
	logger   logger.Logger
	now      func() time.Time
}

// initialSeq picks where a new engine starts allocating sequence numbers.
//
// A fresh host must not reuse the sequence its predecessor on the same line
// ended with, or a responder with duplicate detection takes its first
// request for a retransmit.
var initialSeq = randomSeq

func randomSeq() uint8 {
	var buf [1]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}

	return buf[0]
}

func newEngine(policy RetryPolicy, maxFrameSize int, observer Observer, metrics *Metrics, l logger.Logger) *engine {
	return &engine{
		policy:   policy,
		seq:      frame.NewSeqAllocator(initialSeq()),
		reasm:    frame.NewReassembler(maxFrameSize),
		observer: observer,
		metrics:  metrics,
		logger:   l,
		now:      time.Now,
	}
}

// reset discards any partially received frame.
func (e *engine) reset() {
	e.reasm.Reset()
}

// call runs one logical call to completion. ctx is observed before each
// send; a wait in progress always runs to its deadline.
func (e *engine) call(ctx context.Context, t transport.Transport, cmd, payload string) (string, error) {
	req := NewPendingRequest(e.seq.Next(), cmd, payload, e.policy, e.now())

	for {
		var next PendingRequest

		switch req.State {
		case StateSend:
			if err := ctx.Err(); err != nil {
				return "", err
			}
			next = req.Step(e.send(t, req))

		case StateWait:
			next = req.Step(e.wait(t, req.Deadline))

		case StateMatch:
			next = req.Step(EventNone{})
			if next.State == StateWait {
				e.metrics.incStaleFrameCount()
				e.logger.Debug("robolink: stale frame ignored",
					"seq", req.Seq, "got", req.Received.Seq, "command", req.Received.Command)
			}

		case StateRetry:
			next = req.Step(EventNone{})
			if next.State == StateSend {
				e.metrics.incRetryCount()
				e.logger.Debug("robolink: retry",
					"seq", req.Seq, "command", req.Command,
					"attempt", next.Attempt+1, "timeout", next.Timeout, "cause", req.LastErr)
			}

		case StateDone:
			return req.Result, nil

		case StateFail:
			return "", req.Err

		default:
			next = req.Step(EventNone{})
		}

		if next.FastResends > req.FastResends {
			e.metrics.incFastResendCount()
			e.logger.Debug("robolink: BAD_CS, resending", "seq", req.Seq, "fastResends", next.FastResends)
		}
		req = next
	}
}

func (e *engine) send(t transport.Transport, req PendingRequest) Event {
	if e.observer != nil {
		e.observer.OnTx(req.Seq, true, req.Wire)
	}

	if err := t.Write(req.Wire); err != nil {
		e.logger.Debug("robolink: write failed", "seq", req.Seq, "error", err)
		return EventSendFailed{Err: err}
	}
	e.metrics.incFrameSendCount()

	return EventSent{At: e.now()}
}

// wait reads bytes until a span completes or the deadline passes.
func (e *engine) wait(t transport.Transport, deadline time.Time) Event {
	for {
		if !e.now().Before(deadline) {
			return EventDeadline{}
		}

		b, err := t.ReadByteUntil(deadline)
		if err != nil {
			if errors.Is(err, transport.ErrReadTimeout) {
				return EventDeadline{}
			}

			return EventTransportError{Err: err}
		}

		span, ok := e.reasm.Push(b)
		if !ok {
			continue
		}
		e.metrics.incFrameRecvCount()

		f, err := frame.Decode(span)
		if e.observer != nil {
			seq, seqOK := frame.PeekSeq(span)
			e.observer.OnRx(seq, seqOK, span)
		}
		if err != nil {
			e.metrics.incDecodeErrorCount()
			e.logger.Debug("robolink: undecodable frame", "error", err)

			return EventDecodeError{Err: err}
		}

		return EventFrame{Frame: f}
	}
}

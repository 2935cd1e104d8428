package responder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-robolink/command"
	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/transport"
)

// Responder is the device end of a link.
//
// It runs a single execution context: every byte is processed to
// completion, including dispatch and writing the reply, before the next
// byte is read. A slow handler therefore stalls the whole responder.
type Responder struct {
	tr      transport.Transport
	disp    *Dispatcher
	cfg     *ResponderConfig
	reasm   *frame.Reassembler
	metrics *Metrics
	logger  logger.Logger
	now     func() time.Time

	// last request, its reply and when it last arrived, for duplicate detection
	lastReq   []byte
	lastReply []byte
	lastAt    time.Time
}

// New creates a responder serving disp over tr. A nil cfg selects the
// defaults.
func New(tr transport.Transport, disp *Dispatcher, cfg *ResponderConfig) (*Responder, error) {
	if tr == nil {
		return nil, errors.New("responder: transport must not be nil")
	}
	if disp == nil {
		return nil, errors.New("responder: dispatcher must not be nil")
	}
	if cfg == nil {
		var err error
		if cfg, err = NewResponderConfig(); err != nil {
			return nil, err
		}
	}

	return &Responder{
		tr:      tr,
		disp:    disp,
		cfg:     cfg,
		reasm:   frame.NewReassembler(cfg.maxFrameSize),
		metrics: &Metrics{},
		logger:  cfg.logger,
		now:     time.Now,
	}, nil
}

// Serve reads and answers requests until ctx is done or the transport is
// closed, in which case it returns nil. Any other transport error is
// returned.
func (r *Responder) Serve(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		b, err := r.tr.ReadByteUntil(time.Now().Add(r.cfg.pollInterval))
		if err != nil {
			if errors.Is(err, transport.ErrReadTimeout) {
				continue
			}
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}

			return fmt.Errorf("responder: read: %w", err)
		}

		if err := r.Push(b); err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}

			return err
		}
	}
}

// Push processes one incoming byte and writes the reply when it completes
// a request.
func (r *Responder) Push(b byte) error {
	dropped := r.reasm.Dropped()
	span, ok := r.reasm.Push(b)
	if r.reasm.Dropped() != dropped {
		r.metrics.incDropCount()
		r.logger.Debug("robolink: oversized frame dropped", "maxSize", r.reasm.MaxSize())
	}
	if !ok {
		return nil
	}

	reply, ok := r.handleSpan(span)
	if !ok {
		return nil
	}

	if r.cfg.observer != nil {
		seq, seqOK := frame.PeekSeq(reply)
		r.cfg.observer.OnTx(seq, seqOK, reply)
	}

	if err := r.tr.Write(reply); err != nil {
		return fmt.Errorf("responder: write: %w", err)
	}
	r.metrics.incReplyCount()

	return nil
}

func (r *Responder) handleSpan(span []byte) ([]byte, bool) {
	r.metrics.incFrameRecvCount()
	if r.cfg.observer != nil {
		seq, seqOK := frame.PeekSeq(span)
		r.cfg.observer.OnRx(seq, seqOK, span)
	}

	now := r.now()
	if r.isDuplicate(span, now) {
		r.lastAt = now
		r.metrics.incDuplicateCount()
		r.logger.Debug("robolink: duplicate request, replaying reply", "frame", string(span))

		return r.lastReply, true
	}

	reply, ok, panicked := r.disp.handle(span)
	if panicked {
		r.metrics.incPanicCount()
	}
	if !ok {
		r.metrics.incDropCount()
		return nil, false
	}

	f, err := frame.Decode(reply)
	if err == nil && f.Command == command.Nack {
		r.metrics.incNackCount()
	}

	// cache only answers to requests that decoded
	if _, err := frame.Decode(span); err == nil {
		r.lastReq = span
		r.lastReply = reply
		r.lastAt = now
	} else {
		r.lastReq, r.lastReply = nil, nil
	}

	return reply, true
}

// isDuplicate reports whether span repeats the last request byte for byte
// inside the duplicate window. An older repeat comes from a new host that
// happened to reuse the sequence.
func (r *Responder) isDuplicate(span []byte, now time.Time) bool {
	if !r.cfg.duplicateDetection || r.lastReq == nil {
		return false
	}
	if now.Sub(r.lastAt) > r.cfg.duplicateWindow {
		return false
	}

	return bytes.Equal(span, r.lastReq)
}

// GetMetrics returns the metrics of the responder.
func (r *Responder) GetMetrics() *Metrics {
	return r.metrics
}

// Dispatcher returns the dispatcher being served.
func (r *Responder) Dispatcher() *Dispatcher {
	return r.disp
}

// ListenAndServe accepts connections from ln and serves disp over each of
// them, one at a time, until ctx is done. A device has a single line, so a
// new connection is only accepted after the previous one closed.
func ListenAndServe(ctx context.Context, ln net.Listener, disp *Dispatcher, cfg *ResponderConfig) error {
	if cfg == nil {
		var err error
		if cfg, err = NewResponderConfig(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("responder: accept: %w", err)
		}

		cfg.logger.Info("robolink: peer connected", "remoteAddr", conn.RemoteAddr())

		tr := transport.NewConnTransport(conn)
		if cfg.wrap != nil {
			tr = cfg.wrap(tr)
		}
		r, err := New(tr, disp, cfg)
		if err != nil {
			_ = conn.Close()
			return err
		}

		serveErr := r.Serve(ctx)
		_ = tr.Close()
		if serveErr != nil {
			cfg.logger.Warn("robolink: peer connection ended", "remoteAddr", conn.RemoteAddr(), "error", serveErr)
		} else {
			cfg.logger.Info("robolink: peer disconnected", "remoteAddr", conn.RemoteAddr())
		}
	}
}

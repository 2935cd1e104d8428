package frame

import "iter"

// ReassemblerState is the state of a Reassembler.
type ReassemblerState int

const (
	// Idle means no frame is being accumulated; bytes are discarded until
	// a start marker arrives.
	Idle ReassemblerState = iota
	// InFrame means a start marker was seen and bytes are being accumulated.
	InFrame
)

// String returns the state name.
func (s ReassemblerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFrame:
		return "in-frame"
	default:
		return "unknown"
	}
}

// Reassembler turns an arbitrary incoming byte stream into candidate frame
// spans delimited by StartMarker and EndMarker.
//
// It is an explicit fold over incoming bytes: it never blocks, holds no
// state beyond the current partial frame, and emits at most one span per
// end marker. Spans are not validated; pass them to Decode.
//
// A start marker seen while already inside a frame restarts accumulation,
// which resynchronizes the stream after a lost end marker. A frame growing
// beyond the size bound is dropped silently.
//
// Reassembler is NOT goroutine-safe.
type Reassembler struct {
	buf     []byte
	state   ReassemblerState
	maxSize int

	dropped uint64
	resyncs uint64
}

// NewReassembler creates a Reassembler bounded to maxSize bytes per frame,
// markers included. A non-positive maxSize selects DefaultMaxFrameSize.
func NewReassembler(maxSize int) *Reassembler {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	return &Reassembler{
		buf:     make([]byte, 0, maxSize),
		maxSize: maxSize,
	}
}

// Push consumes one byte. When b completes a frame, Push returns a copy of
// the accumulated span and true, and the reassembler returns to Idle.
func (r *Reassembler) Push(b byte) ([]byte, bool) {
	if b == StartMarker {
		if r.state == InFrame {
			r.resyncs++
		}
		r.buf = append(r.buf[:0], b)
		r.state = InFrame

		return nil, false
	}

	if r.state == Idle {
		return nil, false
	}

	if len(r.buf)+1 > r.maxSize {
		r.dropped++
		r.Reset()

		return nil, false
	}

	r.buf = append(r.buf, b)

	if b != EndMarker {
		return nil, false
	}

	span := make([]byte, len(r.buf))
	copy(span, r.buf)
	r.Reset()

	return span, true
}

// Feed consumes a chunk of bytes one at a time and yields every completed
// span. Stopping the iteration early leaves the remaining bytes unconsumed.
func (r *Reassembler) Feed(p []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, b := range p {
			span, ok := r.Push(b)
			if ok && !yield(span) {
				return
			}
		}
	}
}

// Reset discards any partial frame and returns to Idle.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.state = Idle
}

// State returns the current state.
func (r *Reassembler) State() ReassemblerState {
	return r.state
}

// Buffered returns the number of bytes of the partial frame.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// MaxSize returns the frame size bound.
func (r *Reassembler) MaxSize() int {
	return r.maxSize
}

// Dropped returns the number of oversized frames discarded so far.
func (r *Reassembler) Dropped() uint64 {
	return r.dropped
}

// Resyncs returns how many partial frames were abandoned because a new
// start marker arrived before their end marker.
func (r *Reassembler) Resyncs() uint64 {
	return r.resyncs
}

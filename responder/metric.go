package responder

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a responder.
type Metrics struct {
	// FrameRecvCount indicates the number of candidate frames received.
	FrameRecvCount atomic.Uint64
	// ReplyCount indicates the number of replies written.
	ReplyCount atomic.Uint64
	// NackCount indicates the number of NACK replies written.
	NackCount atomic.Uint64
	// DropCount indicates the number of frames dropped without a reply.
	DropCount atomic.Uint64
	// DuplicateCount indicates the number of requests answered from the cache.
	DuplicateCount atomic.Uint64
	// PanicCount indicates the number of recovered handler panics.
	PanicCount atomic.Uint64
}

func (m *Metrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *Metrics) incReplyCount() {
	m.ReplyCount.Add(1)
}

func (m *Metrics) incNackCount() {
	m.NackCount.Add(1)
}

func (m *Metrics) incDropCount() {
	m.DropCount.Add(1)
}

func (m *Metrics) incDuplicateCount() {
	m.DuplicateCount.Add(1)
}

func (m *Metrics) incPanicCount() {
	m.PanicCount.Add(1)
}

package link

import (
	"sync"
	"sync/atomic"
)

// LinkState is the health of a client link.
type LinkState uint32

// Link states.
const (
	// LinkOpen indicates a transport presumed healthy; calls proceed normally.
	LinkOpen LinkState = iota
	// LinkDegraded indicates a call exhausted its retries or a probe failed.
	LinkDegraded
	// LinkReconnecting indicates the reopen-and-probe procedure is running.
	LinkReconnecting
	// LinkDown indicates the reconnect procedure gave up. Calls fail with
	// ErrLinkDown until Reconnect is requested.
	LinkDown
)

// String returns the state name.
func (s LinkState) String() string {
	switch s {
	case LinkOpen:
		return "OPEN"
	case LinkDegraded:
		return "DEGRADED"
	case LinkReconnecting:
		return "RECONNECTING"
	case LinkDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// LinkStateChangeHandler is invoked after every link state transition.
//
// Note: the handler is invoked synchronously from the goroutine driving the
// link. Take care with long-running implementations.
type LinkStateChangeHandler func(prev LinkState, next LinkState)

type linkEvent uint8

const (
	evCallExhausted linkEvent = iota
	evProbeFailed
	evReconnectBegin
	evProbeSucceeded
	evReconnectExhausted
	evExternalReconnect
	evShutdown
)

func (ev linkEvent) String() string {
	switch ev {
	case evCallExhausted:
		return "call-exhausted"
	case evProbeFailed:
		return "probe-failed"
	case evReconnectBegin:
		return "reconnect-begin"
	case evProbeSucceeded:
		return "probe-succeeded"
	case evReconnectExhausted:
		return "reconnect-exhausted"
	case evExternalReconnect:
		return "external-reconnect"
	case evShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// nextLinkState is the link transition table. It reports false when ev
// does not apply to cur.
func nextLinkState(cur LinkState, ev linkEvent) (LinkState, bool) {
	if ev == evShutdown {
		return LinkDown, cur != LinkDown
	}

	switch cur {
	case LinkOpen:
		switch ev {
		case evCallExhausted, evProbeFailed:
			return LinkDegraded, true
		case evExternalReconnect:
			return LinkReconnecting, true
		}

	case LinkDegraded:
		switch ev {
		case evReconnectBegin, evExternalReconnect:
			return LinkReconnecting, true
		}

	case LinkReconnecting:
		switch ev {
		case evProbeSucceeded:
			return LinkOpen, true
		case evReconnectExhausted:
			return LinkDown, true
		}

	case LinkDown:
		if ev == evExternalReconnect {
			return LinkReconnecting, true
		}
	}

	return cur, false
}

// linkHealth holds the link state and the consecutive exhausted-call count.
// It emits no logs; observers register handlers.
type linkHealth struct {
	mu        sync.Mutex
	state     atomic.Uint32
	failures  int
	threshold int
	handlers  []LinkStateChangeHandler
}

func newLinkHealth(threshold int, handlers ...LinkStateChangeHandler) *linkHealth {
	if threshold < 1 {
		threshold = 1
	}

	h := &linkHealth{threshold: threshold}
	h.state.Store(uint32(LinkDown))
	h.handlers = append(h.handlers, handlers...)

	return h
}

// State returns the current link state.
func (h *linkHealth) State() LinkState {
	return LinkState(h.state.Load())
}

// AddHandler adds handlers invoked on every transition.
func (h *linkHealth) AddHandler(handlers ...LinkStateChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handlers...)
}

// fire applies ev and reports whether the state changed.
func (h *linkHealth) fire(ev linkEvent) bool {
	h.mu.Lock()
	prev := h.State()
	next, ok := nextLinkState(prev, ev)
	if !ok {
		h.mu.Unlock()
		return false
	}
	h.state.Store(uint32(next))
	if next == LinkOpen {
		h.failures = 0
	}
	handlers := make([]LinkStateChangeHandler, len(h.handlers))
	copy(handlers, h.handlers)
	h.mu.Unlock()

	for _, handler := range handlers {
		handler(prev, next)
	}

	return true
}

// callSucceeded resets the consecutive failure count.
func (h *linkHealth) callSucceeded() {
	h.mu.Lock()
	h.failures = 0
	h.mu.Unlock()
}

// callExhausted records an exhausted call and reports whether the link
// degraded as a result.
func (h *linkHealth) callExhausted() bool {
	h.mu.Lock()
	h.failures++
	reached := h.failures >= h.threshold
	if reached {
		h.failures = 0
	}
	h.mu.Unlock()

	if !reached {
		return false
	}

	return h.fire(evCallExhausted)
}

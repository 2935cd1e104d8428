package link

import (
	"time"

	"github.com/arloliu/go-robolink/command"
	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/transport"
)

// CallState is the state of one logical call.
type CallState uint8

// Call states. A call starts in StateBuild and ends in StateDone or StateFail.
const (
	StateBuild CallState = iota
	StateSend
	StateWait
	StateMatch
	StateHandle
	StateRetry
	StateDone
	StateFail
)

// String returns the state name.
func (s CallState) String() string {
	switch s {
	case StateBuild:
		return "BUILD"
	case StateSend:
		return "SEND"
	case StateWait:
		return "WAIT"
	case StateMatch:
		return "MATCH"
	case StateHandle:
		return "HANDLE"
	case StateRetry:
		return "RETRY"
	case StateDone:
		return "DONE"
	case StateFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is StateDone or StateFail.
func (s CallState) IsTerminal() bool {
	return s == StateDone || s == StateFail
}

// RetryPolicy bounds one call.
type RetryPolicy struct {
	// BaseTimeout is the deadline of the first attempt. Each retry doubles it.
	BaseTimeout time.Duration
	// MaxRetries is the number of send attempts before the call fails.
	MaxRetries int
	// MaxFastResends caps the BAD_CS resends of one call. Past the cap a
	// BAD_CS reply ends the attempt like a deadline.
	MaxFastResends int
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseTimeout:    DefaultBaseTimeout,
		MaxRetries:     DefaultMaxRetries,
		MaxFastResends: DefaultMaxFastResends,
	}
}

// Event is an input to PendingRequest.Step.
type Event interface {
	event()
}

// EventNone advances the states that need no outside input:
// BUILD, MATCH, HANDLE and RETRY.
type EventNone struct{}

// EventSent reports that the request frame was written at At.
type EventSent struct{ At time.Time }

// EventSendFailed reports a write error.
type EventSendFailed struct{ Err error }

// EventFrame delivers a decoded frame received while waiting.
type EventFrame struct{ Frame frame.Frame }

// EventDecodeError delivers a received span that failed to decode.
type EventDecodeError struct{ Err error }

// EventDeadline reports that the attempt deadline passed.
type EventDeadline struct{}

// EventTransportError reports a read error other than a timeout.
type EventTransportError struct{ Err error }

func (EventNone) event()           {}
func (EventSent) event()           {}
func (EventSendFailed) event()     {}
func (EventFrame) event()          {}
func (EventDecodeError) event()    {}
func (EventDeadline) event()       {}
func (EventTransportError) event() {}

// PendingRequest is the state of one logical call. It is a value: Step
// returns the next state and never mutates the receiver.
type PendingRequest struct {
	Seq     uint8
	Command string
	Payload string
	// Wire is the encoded request, set by BUILD and reused by every resend.
	Wire []byte

	// Attempt counts the backoff-governed retries taken so far.
	Attempt int
	// FastResends counts the BAD_CS resends taken so far.
	FastResends int
	// Timeout is the deadline length of the current attempt.
	Timeout time.Duration
	// Deadline is when the current attempt expires; set by EventSent.
	Deadline  time.Time
	CreatedAt time.Time

	State CallState
	// Received is the frame under MATCH or HANDLE.
	Received *frame.Frame
	// Result is the ACK payload once State is StateDone.
	Result string
	// Err is the terminal error once State is StateFail.
	Err error
	// LastErr is the failure that ended the most recent attempt.
	LastErr error

	policy RetryPolicy
}

// NewPendingRequest creates a call in StateBuild.
func NewPendingRequest(seq uint8, cmd, payload string, policy RetryPolicy, now time.Time) PendingRequest {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	if policy.BaseTimeout <= 0 {
		policy.BaseTimeout = DefaultBaseTimeout
	}

	return PendingRequest{
		Seq:       seq,
		Command:   cmd,
		Payload:   payload,
		CreatedAt: now,
		State:     StateBuild,
		policy:    policy,
	}
}

// Policy returns the retry policy of the call.
func (r PendingRequest) Policy() RetryPolicy {
	return r.policy
}

// Step applies ev to the call and returns the resulting state.
// Events that do not apply to the current state leave it unchanged.
func (r PendingRequest) Step(ev Event) PendingRequest {
	switch r.State {
	case StateBuild:
		return r.build()

	case StateSend:
		switch e := ev.(type) {
		case EventSent:
			r.Deadline = e.At.Add(r.Timeout)
			r.State = StateWait
		case EventSendFailed:
			r.LastErr = e.Err
			r.State = StateRetry
		}

	case StateWait:
		switch e := ev.(type) {
		case EventFrame:
			f := e.Frame
			r.Received = &f
			r.State = StateMatch
		case EventDecodeError:
			// only a checksum error echoing our sequence is trusted
			if de, ok := frame.AsDecodeError(e.Err); ok && de.IsChecksum() && de.SeqOK && de.Seq == r.Seq {
				return r.fastResend()
			}
		case EventDeadline:
			r.LastErr = transport.ErrReadTimeout
			r.State = StateRetry
		case EventTransportError:
			r.LastErr = e.Err
			r.State = StateRetry
		}

	case StateMatch:
		if r.Received == nil || r.Received.Seq != r.Seq {
			r.Received = nil
			r.State = StateWait

			return r
		}
		r.State = StateHandle

	case StateHandle:
		return r.handle()

	case StateRetry:
		r.Attempt++
		if r.Attempt >= r.policy.MaxRetries {
			r.State = StateFail
			r.Err = &TimeoutError{
				Seq:      r.Seq,
				Command:  r.Command,
				Attempts: r.Attempt,
				Timeout:  r.Timeout,
				Last:     r.LastErr,
			}

			return r
		}
		r.Timeout *= 2
		r.State = StateSend

	case StateDone, StateFail:
	}

	return r
}

func (r PendingRequest) build() PendingRequest {
	wire, err := frame.Encode(r.Seq, r.Command, r.Payload)
	if err != nil {
		r.Err = err
		r.State = StateFail

		return r
	}

	r.Wire = wire
	r.Attempt = 0
	r.Timeout = r.policy.BaseTimeout
	r.State = StateSend

	return r
}

func (r PendingRequest) handle() PendingRequest {
	f := r.Received
	r.Received = nil

	switch f.Command {
	case command.Ack:
		r.Result = f.Payload
		r.State = StateDone

	case command.Nack:
		if f.Payload == command.ReasonBadChecksum {
			return r.fastResend()
		}
		r.Err = &SemanticError{Seq: r.Seq, Command: r.Command, Reason: f.Payload}
		r.State = StateFail

	default:
		r.State = StateWait
	}

	return r
}

// fastResend goes back to SEND with the attempt and timeout unchanged.
func (r PendingRequest) fastResend() PendingRequest {
	if r.FastResends >= r.policy.MaxFastResends {
		r.LastErr = errFastResendLimit
		r.State = StateRetry

		return r
	}

	r.FastResends++
	r.State = StateSend

	return r
}

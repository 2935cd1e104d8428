package link

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by a *TimeoutError: no valid matching ACK arrived
	// within any attempt.
	ErrTimeout = errors.New("link: request timed out")

	// ErrSemantic is matched by a *SemanticError: the device answered with a
	// NACK other than BAD_CS.
	ErrSemantic = errors.New("link: request rejected")

	// ErrLinkDown is returned by calls attempted while the link is down.
	ErrLinkDown = errors.New("link: link is down")

	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("link: client closed")
)

// TimeoutError reports a request that exhausted its retry budget.
type TimeoutError struct {
	Seq      uint8
	Command  string
	Attempts int
	// Timeout is the deadline of the last attempt.
	Timeout time.Duration
	// Last is the failure that ended the last attempt, typically
	// transport.ErrReadTimeout.
	Last error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("link: %s (seq=%02X) timed out after %d attempts", e.Command, e.Seq, e.Attempts)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}

	return msg
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Unwrap returns the failure of the last attempt.
func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// SemanticError reports a request the device rejected with a NACK.
type SemanticError struct {
	Seq     uint8
	Command string
	// Reason is the NACK payload, e.g. "BAD_V".
	Reason string
}

// Error implements the error interface.
func (e *SemanticError) Error() string {
	return fmt.Sprintf("link: %s (seq=%02X) rejected: %s", e.Command, e.Seq, e.Reason)
}

// Is reports whether target is ErrSemantic.
func (e *SemanticError) Is(target error) bool {
	return target == ErrSemantic
}

// ReasonOf returns the NACK reason carried by err, or "" when err is not a
// *SemanticError.
func ReasonOf(err error) string {
	var se *SemanticError
	if errors.As(err, &se) {
		return se.Reason
	}

	return ""
}

var errFastResendLimit = errors.New("link: too many BAD_CS replies")

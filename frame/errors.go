package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat indicates a frame that is structurally malformed: missing
	// markers, a missing or invalid checksum suffix, a wrong field count,
	// or an invalid sequence field.
	ErrFormat = errors.New("frame: format error")

	// ErrChecksum indicates a structurally valid envelope whose computed
	// checksum does not match the received checksum.
	ErrChecksum = errors.New("frame: checksum mismatch")

	// ErrInvalidField indicates that a command or payload passed to Encode
	// contains a reserved delimiter, a frame marker, or a non-printable byte.
	ErrInvalidField = errors.New("frame: invalid field")
)

// DecodeError describes why a received byte span could not be decoded.
//
// Kind is either ErrFormat or ErrChecksum, so callers can use errors.Is.
// When SeqOK is true, Seq holds the sequence number recovered from the
// leading bytes of the span even though the frame itself is unusable.
type DecodeError struct {
	Kind   error
	Seq    uint8
	SeqOK  bool
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.SeqOK {
		return fmt.Sprintf("%s (seq=%02X): %s", e.Kind, e.Seq, e.Reason)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap returns the error kind.
func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// IsChecksum reports whether the error is a checksum mismatch.
func (e *DecodeError) IsChecksum() bool {
	return errors.Is(e.Kind, ErrChecksum)
}

// AsDecodeError returns err as a *DecodeError if it is one.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}

	return nil, false
}

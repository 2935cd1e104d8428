package frame

import (
	"bytes"
	"fmt"
)

// Frame markers and delimiters.
const (
	StartMarker byte = '^'
	EndMarker   byte = '$'
	FieldSep    byte = '|'
	ChecksumSep byte = '*'
)

// MinFrameSize is the smallest span Decode will consider: the two markers,
// the checksum separator with its two digits, and two content bytes.
const MinFrameSize = 7

// DefaultMaxFrameSize is the default reassembly bound, markers included.
const DefaultMaxFrameSize = 256

// frameOverhead is the number of bytes a frame adds around command and payload:
// '^' + 2 seq digits + 2 '|' + '*' + 2 checksum digits + '$'.
const frameOverhead = 9

const hexDigits = "0123456789ABCDEF"

// reserved lists the bytes that may never appear inside a command or payload.
const reserved = "|*^$"

// Frame is one decoded protocol message.
type Frame struct {
	Seq     uint8
	Command string
	Payload string
}

// Encode serializes the frame to its wire form.
func (f Frame) Encode() ([]byte, error) {
	return Encode(f.Seq, f.Command, f.Payload)
}

// String returns a compact human readable form, e.g. "01|PING|".
func (f Frame) String() string {
	return fmt.Sprintf("%02X|%s|%s", f.Seq, f.Command, f.Payload)
}

// Checksum returns the running XOR of every byte in b.
func Checksum(b []byte) uint8 {
	var cs uint8
	for _, v := range b {
		cs ^= v
	}

	return cs
}

// Encode builds the wire frame ^SS|CMD|PAYLOAD*CS$ for the given triple.
//
// The command must be non-empty. Neither command nor payload may contain
// '|', '*', '^', '$' or bytes outside printable ASCII.
func Encode(seq uint8, cmd, payload string) ([]byte, error) {
	if cmd == "" {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidField)
	}
	if err := checkField("command", cmd); err != nil {
		return nil, err
	}
	if err := checkField("payload", payload); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(cmd)+len(payload)+frameOverhead)
	buf = append(buf, StartMarker)
	buf = appendHex2(buf, seq)
	buf = append(buf, FieldSep)
	buf = append(buf, cmd...)
	buf = append(buf, FieldSep)
	buf = append(buf, payload...)

	cs := Checksum(buf[1:])
	buf = append(buf, ChecksumSep)
	buf = appendHex2(buf, cs)
	buf = append(buf, EndMarker)

	return buf, nil
}

// MustEncode is like Encode but panics on invalid input. Intended for
// constant frames and tests.
func MustEncode(seq uint8, cmd, payload string) []byte {
	b, err := Encode(seq, cmd, payload)
	if err != nil {
		panic(err)
	}

	return b
}

// Decode parses and validates a complete frame span.
//
// Validation happens in three stages:
//
//  1. Envelope: start and end markers, minimum length, the checksum
//     separator in front of two hex checksum digits. Failure is ErrFormat.
//  2. Checksum: the XOR over the content between '^' and '*' must equal
//     the received checksum. Failure is ErrChecksum.
//  3. Fields: exactly three '|'-separated fields, a two hex digit sequence
//     and a non-empty command. Failure is ErrFormat.
//
// The envelope must hold before a checksum comparison means anything, and the
// checksum is compared before the field split so that any corrupted content
// byte is reported as a checksum error rather than a confusing field error.
//
// On failure the returned error is a *DecodeError. Its sequence number is
// recovered whenever the content starts with two hex digits followed by '|'.
func Decode(b []byte) (Frame, error) {
	n := len(b)
	if n < MinFrameSize {
		return Frame{}, newFormatError(b, "frame too short: %d bytes", n)
	}

	if b[0] != StartMarker || b[n-1] != EndMarker {
		return Frame{}, newFormatError(b, "missing start or end marker")
	}

	sep := n - 4
	if b[sep] != ChecksumSep {
		return Frame{}, newFormatError(b, "missing checksum separator")
	}

	want, ok := parseHex2(b[sep+1], b[sep+2])
	if !ok {
		return Frame{}, newFormatError(b, "invalid checksum digits %q", b[sep+1:sep+3])
	}

	content := b[1:sep]
	seq, seqOK := recoverSeq(content)

	if got := Checksum(content); got != want {
		return Frame{}, &DecodeError{
			Kind:   ErrChecksum,
			Seq:    seq,
			SeqOK:  seqOK,
			Reason: fmt.Sprintf("wire=%02X, computed=%02X", want, got),
		}
	}

	for _, c := range content {
		if c < 0x20 || c > 0x7E || c == ChecksumSep || c == StartMarker || c == EndMarker {
			return Frame{}, newFormatError(b, "illegal byte 0x%02X in content", c)
		}
	}

	parts := bytes.Split(content, []byte{FieldSep})
	if len(parts) != 3 {
		return Frame{}, newFormatError(b, "expected 3 fields, got %d", len(parts))
	}

	if len(parts[0]) != 2 || !seqOK {
		return Frame{}, newFormatError(b, "invalid sequence field %q", parts[0])
	}

	if len(parts[1]) == 0 {
		return Frame{}, newFormatError(b, "empty command")
	}

	return Frame{
		Seq:     seq,
		Command: string(parts[1]),
		Payload: string(parts[2]),
	}, nil
}

// PeekSeq recovers the sequence number from a raw span without validating it.
func PeekSeq(b []byte) (uint8, bool) {
	if len(b) < 2 || b[0] != StartMarker {
		return 0, false
	}

	return recoverSeq(b[1:])
}

func newFormatError(b []byte, format string, args ...any) *DecodeError {
	seq, ok := PeekSeq(b)

	return &DecodeError{
		Kind:   ErrFormat,
		Seq:    seq,
		SeqOK:  ok,
		Reason: fmt.Sprintf(format, args...),
	}
}

// recoverSeq reads the sequence from content that starts with two hex digits
// followed by a field separator.
func recoverSeq(content []byte) (uint8, bool) {
	if len(content) < 3 || content[2] != FieldSep {
		return 0, false
	}

	return parseHex2(content[0], content[1])
}

func checkField(name, s string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7E {
			return fmt.Errorf("%w: %s contains non-printable byte 0x%02X", ErrInvalidField, name, c)
		}
		if bytes.IndexByte([]byte(reserved), c) >= 0 {
			return fmt.Errorf("%w: %s contains reserved character %q", ErrInvalidField, name, c)
		}
	}

	return nil
}

func appendHex2(buf []byte, v uint8) []byte {
	return append(buf, hexDigits[v>>4], hexDigits[v&0x0F])
}

func parseHex2(hi, lo byte) (uint8, bool) {
	h, ok := hexVal(hi)
	if !ok {
		return 0, false
	}
	l, ok := hexVal(lo)
	if !ok {
		return 0, false
	}

	return h<<4 | l, true
}

func hexVal(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

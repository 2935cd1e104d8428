// Package command defines the command vocabulary carried by the frame
// protocol: the request commands a host may issue, the reply commands a
// device answers with, the NACK reason codes, and per-command payload
// validation shared by both ends.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Request commands.
const (
	Ping   = "PING"
	Help   = "HELP"
	Status = "STATUS"
	Speed  = "V" // set linear speed (PWM), unsigned 0..255
	Move   = "M" // move by signed centimeters
	Rotate = "R" // rotate by signed degrees
	Stop   = "S" // emergency stop
	Sonar  = "B" // sonar distance reading
	IR     = "I" // IR sensor reading
)

// Reply commands.
const (
	Ack  = "ACK"
	Nack = "NACK"
)

// NACK reason codes.
const (
	ReasonBadChecksum = "BAD_CS"
	ReasonBadFormat   = "BAD_FMT"
	ReasonBadSeq      = "BAD_SEQ"
	ReasonBadCommand  = "BAD_CMD"
	ReasonBadSpeed    = "BAD_V"
	ReasonBadMove     = "BAD_M"
	ReasonBadRotate   = "BAD_R"
	ReasonBadArg      = "BAD_ARG"
	ReasonFailure     = "FAIL"
)

// Payload range limits.
const (
	MaxSpeed    = 255
	MaxMoveCM   = 10000
	MaxRotateDg = 3600
)

// ErrUnknownCommand is returned by Validate for a command outside the vocabulary.
var ErrUnknownCommand = errors.New("command: unknown command")

// ArgKind describes the payload a command expects.
type ArgKind int

const (
	NoArg ArgKind = iota
	UnsignedArg
	SignedArg
)

// Spec describes one request command.
type Spec struct {
	Name   string
	Arg    ArgKind
	Usage  string
	Help   string
	Reason string // NACK reason for an invalid payload
	Min    int64
	Max    int64
}

var specs = map[string]Spec{
	Ping:   {Name: Ping, Usage: "PING", Help: "health check"},
	Help:   {Name: Help, Usage: "HELP", Help: "list commands"},
	Status: {Name: Status, Usage: "STATUS", Help: "robot status"},
	Speed: {
		Name: Speed, Arg: UnsignedArg, Usage: "V:<0..255>", Help: "set linear speed (PWM)",
		Reason: ReasonBadSpeed, Min: 0, Max: MaxSpeed,
	},
	Move: {
		Name: Move, Arg: SignedArg, Usage: "M:<cm>", Help: "move by centimeters (+forward, -back)",
		Reason: ReasonBadMove, Min: -MaxMoveCM, Max: MaxMoveCM,
	},
	Rotate: {
		Name: Rotate, Arg: SignedArg, Usage: "R:<deg>", Help: "rotate by degrees (+right, -left)",
		Reason: ReasonBadRotate, Min: -MaxRotateDg, Max: MaxRotateDg,
	},
	Stop:  {Name: Stop, Usage: "S", Help: "emergency stop"},
	Sonar: {Name: Sonar, Usage: "B", Help: "sonar read (cm)"},
	IR:    {Name: IR, Usage: "I", Help: "IR sensor read"},
}

// Lookup returns the spec of a request command. The name is matched
// case-insensitively.
func Lookup(name string) (Spec, bool) {
	s, ok := specs[strings.ToUpper(strings.TrimSpace(name))]

	return s, ok
}

// Names returns the request command names in sorted order.
func Names() []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Validate checks a payload against the command's contract and returns the
// normalized payload. Commands without an argument accept a blank payload,
// since hosts may pad it with a space.
//
// A validation failure is a *ReasonError carrying the command's NACK reason.
func (s Spec) Validate(payload string) (string, error) {
	p := strings.TrimSpace(payload)

	switch s.Arg {
	case NoArg:
		if p != "" {
			return "", &ReasonError{Reason: ReasonBadArg, Err: fmt.Errorf("%s takes no argument, got %q", s.Name, payload)}
		}

		return "", nil

	case UnsignedArg, SignedArg:
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || (s.Arg == UnsignedArg && strings.HasPrefix(p, "-")) {
			return "", &ReasonError{Reason: s.Reason, Err: fmt.Errorf("%s: invalid number %q", s.Name, payload)}
		}
		if v < s.Min || v > s.Max {
			return "", &ReasonError{Reason: s.Reason, Err: fmt.Errorf("%s: %d out of range [%d, %d]", s.Name, v, s.Min, s.Max)}
		}

		return strconv.FormatInt(v, 10), nil
	}

	return p, nil
}

// Validate looks up name and validates payload against it.
func Validate(name, payload string) (string, error) {
	s, ok := Lookup(name)
	if !ok {
		return "", &ReasonError{Reason: ReasonBadCommand, Err: fmt.Errorf("%w: %q", ErrUnknownCommand, name)}
	}

	return s.Validate(payload)
}

// ParseToken splits a "CMD" or "CMD:payload" token into an upper-cased
// command and a trimmed payload.
func ParseToken(token string) (string, string) {
	token = strings.TrimSpace(token)
	cmd, payload, _ := strings.Cut(token, ":")

	return strings.ToUpper(strings.TrimSpace(cmd)), strings.TrimSpace(payload)
}

// HelpText returns the usage lines of every request command.
func HelpText() string {
	var sb strings.Builder
	for _, name := range Names() {
		s := specs[name]
		fmt.Fprintf(&sb, "%-10s %s\n", s.Usage, s.Help)
	}

	return sb.String()
}

// ReasonError is an error that maps to a specific NACK reason code.
type ReasonError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ReasonError) Error() string {
	if e.Err == nil {
		return e.Reason
	}

	return e.Reason + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ReasonError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the NACK reason carried by err, or ReasonFailure when
// err carries none.
func ReasonOf(err error) string {
	var re *ReasonError
	if errors.As(err, &re) && re.Reason != "" {
		return re.Reason
	}

	return ReasonFailure
}

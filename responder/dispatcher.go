package responder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arloliu/go-robolink/command"
	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// Handler performs a command. payload has already passed the command's
// validation when the command belongs to the standard vocabulary.
//
// The result text becomes the ACK payload. A returned error becomes a NACK
// whose reason is taken from a *command.ReasonError, or FAIL otherwise.
// Handlers run on the serve loop and must return promptly.
type Handler func(payload string) (string, error)

// Dispatcher maps request commands to handlers and builds the reply frame
// for every request. Registration is safe while serving.
type Dispatcher struct {
	handlers *xsync.MapOf[string, Handler]
	logger   logger.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(l logger.Logger) *Dispatcher {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Dispatcher{
		handlers: xsync.NewMapOf[string, Handler](),
		logger:   l,
	}
}

// Register binds name, matched case-insensitively, to h.
func (d *Dispatcher) Register(name string, h Handler) {
	d.handlers.Store(normalize(name), h)
}

// Unregister removes the handler of name.
func (d *Dispatcher) Unregister(name string) {
	d.handlers.Delete(normalize(name))
}

// Commands returns the registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, d.handlers.Size())
	d.handlers.Range(func(name string, _ Handler) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)

	return names
}

// Dispatch runs the request f and returns the reply frame, which always
// carries f.Seq.
func (d *Dispatcher) Dispatch(f frame.Frame) frame.Frame {
	reply, _ := d.dispatch(f)
	return reply
}

// Handle decodes a candidate span and returns the encoded reply. It reports
// false when no reply may be sent, i.e. the sequence of a malformed span
// could not be recovered.
func (d *Dispatcher) Handle(span []byte) ([]byte, bool) {
	reply, ok, _ := d.handle(span)
	return reply, ok
}

func (d *Dispatcher) handle(span []byte) ([]byte, bool, bool) {
	f, err := frame.Decode(span)
	if err != nil {
		de, ok := frame.AsDecodeError(err)
		if !ok || !de.SeqOK {
			d.logger.Debug("robolink: dropping undecodable frame", "error", err)
			return nil, false, false
		}

		reason := command.ReasonBadFormat
		if de.IsChecksum() {
			reason = command.ReasonBadChecksum
		}

		return frame.MustEncode(de.Seq, command.Nack, reason), true, false
	}

	reply, panicked := d.dispatch(f)
	wire, err := reply.Encode()
	if err != nil {
		// the handler produced a result the frame grammar cannot carry
		d.logger.Warn("robolink: reply not encodable", "command", f.Command, "error", err)
		wire = frame.MustEncode(f.Seq, command.Nack, command.ReasonFailure)
	}

	return wire, true, panicked
}

func (d *Dispatcher) dispatch(f frame.Frame) (reply frame.Frame, panicked bool) {
	name := normalize(f.Command)

	h, ok := d.handlers.Load(name)
	if !ok {
		return nack(f.Seq, command.ReasonBadCommand), false
	}

	payload := f.Payload
	if spec, ok := command.Lookup(name); ok {
		p, err := spec.Validate(payload)
		if err != nil {
			return nack(f.Seq, command.ReasonOf(err)), false
		}
		payload = p
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("robolink: handler panic", "command", name, "panic", fmt.Sprint(r))
			reply = nack(f.Seq, command.ReasonFailure)
			panicked = true
		}
	}()

	result, err := h(payload)
	if err != nil {
		d.logger.Debug("robolink: handler failed", "command", name, "error", err)
		return nack(f.Seq, command.ReasonOf(err)), false
	}

	return frame.Frame{Seq: f.Seq, Command: command.Ack, Payload: result}, false
}

func nack(seq uint8, reason string) frame.Frame {
	return frame.Frame{Seq: seq, Command: command.Nack, Payload: reason}
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

package responder

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/transport"
)

// Default values of a responder.
const (
	DefaultMaxFrameSize = frame.DefaultMaxFrameSize
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultDuplicateWindow outlasts every resend gap of the default client
	// retry policy.
	DefaultDuplicateWindow = 5 * time.Second
)

// Range limits of a responder.
const (
	MinFrameSize = 16
	MaxFrameSize = 4096

	MinPollInterval = time.Millisecond
	MaxPollInterval = 5 * time.Second

	MinDuplicateWindow = time.Millisecond
	MaxDuplicateWindow = 10 * time.Minute
)

// Observer receives every frame the responder reads or writes. Seq is only
// meaningful when seqOK is true.
type Observer interface {
	OnTx(seq uint8, seqOK bool, raw []byte)
	OnRx(seq uint8, seqOK bool, raw []byte)
}

// ResponderConfig holds the configuration of a responder.
type ResponderConfig struct {
	maxFrameSize       int
	pollInterval       time.Duration
	duplicateDetection bool
	duplicateWindow    time.Duration
	observer           Observer
	wrap               func(transport.Transport) transport.Transport
	logger             logger.Logger
}

// NewResponderConfig creates a responder configuration. opts are applied
// in order; see With* functions.
func NewResponderConfig(opts ...ResponderOption) (*ResponderConfig, error) {
	cfg := &ResponderConfig{
		maxFrameSize:       DefaultMaxFrameSize,
		pollInterval:       DefaultPollInterval,
		duplicateDetection: true,
		duplicateWindow:    DefaultDuplicateWindow,
		logger:             logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// MaxFrameSize returns the reassembly bound, markers included.
func (cfg *ResponderConfig) MaxFrameSize() int { return cfg.maxFrameSize }

// PollInterval returns how long a single read waits for a byte.
func (cfg *ResponderConfig) PollInterval() time.Duration { return cfg.pollInterval }

// DuplicateDetection returns whether a repeated request is answered from
// the cached reply.
func (cfg *ResponderConfig) DuplicateDetection() bool { return cfg.duplicateDetection }

// DuplicateWindow returns how long after the last request a byte-identical
// repeat still counts as a retransmit.
func (cfg *ResponderConfig) DuplicateWindow() time.Duration { return cfg.duplicateWindow }

// GetLogger returns the configured logger.
func (cfg *ResponderConfig) GetLogger() logger.Logger { return cfg.logger }

// ResponderOption is a functional option for configuring a ResponderConfig.
type ResponderOption interface {
	apply(*ResponderConfig) error
}

type responderOptFunc func(*ResponderConfig) error

func (f responderOptFunc) apply(cfg *ResponderConfig) error { return f(cfg) }

// WithMaxFrameSize sets the reassembly bound. Longer input is dropped
// silently.
func WithMaxFrameSize(n int) ResponderOption {
	return responderOptFunc(func(cfg *ResponderConfig) error {
		if n < MinFrameSize || n > MaxFrameSize {
			return fmt.Errorf("responder: max frame size %d out of range [%d, %d]", n, MinFrameSize, MaxFrameSize)
		}
		cfg.maxFrameSize = n

		return nil
	})
}

// WithPollInterval sets how long a single read waits before the serve loop
// checks its context again.
func WithPollInterval(d time.Duration) ResponderOption {
	return responderOptFunc(func(cfg *ResponderConfig) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("responder: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithDuplicateDetection enables or disables duplicate request detection.
// When enabled, a request repeating the previous one byte for byte within
// the duplicate window is answered with the previous reply without running
// the handler again. Enabled by default.
func WithDuplicateDetection(enabled bool) ResponderOption {
	return responderOptFunc(func(cfg *ResponderConfig) error {
		cfg.duplicateDetection = enabled

		return nil
	})
}

// WithDuplicateWindow sets how long the cached reply stays eligible for
// replay. A repeat arriving more than d after the previous request is
// handled as a new request. d should exceed the longest resend gap of the
// client retry policy.
func WithDuplicateWindow(d time.Duration) ResponderOption {
	return responderOptFunc(func(cfg *ResponderConfig) error {
		if d < MinDuplicateWindow || d > MaxDuplicateWindow {
			return fmt.Errorf("responder: duplicate window %v out of range [%v, %v]", d, MinDuplicateWindow, MaxDuplicateWindow)
		}
		cfg.duplicateWindow = d

		return nil
	})
}

// WithObserver sets the observer of every frame read or written.
func WithObserver(o Observer) ResponderOption {
	return responderOptFunc(func(cfg *ResponderConfig) error {
		cfg.observer = o

		return nil
	})
}

// WithTransportWrapper sets a function applied to the transport of every
// connection accepted by ListenAndServe, e.g. to inject line noise.
func WithTransportWrapper(wrap func(transport.Transport) transport.Transport) ResponderOption {
	return responderOptFunc(func(cfg *ResponderConfig) error {
		cfg.wrap = wrap

		return nil
	})
}

// WithLogger sets the logger of the responder.
func WithLogger(l logger.Logger) ResponderOption {
	return responderOptFunc(func(cfg *ResponderConfig) error {
		if l == nil {
			return errors.New("responder: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

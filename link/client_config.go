package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/transport"
)

// Default values of a client link.
const (
	DefaultBaseTimeout    = 600 * time.Millisecond // first attempt deadline
	DefaultMaxRetries     = 3                      // send attempts per call
	DefaultMaxFastResends = 16                     // BAD_CS resends per call

	DefaultDegradeThreshold = 1 // consecutive exhausted calls before DEGRADED
	DefaultReconnectRetries = 5
	DefaultReconnectDelay   = 500 * time.Millisecond
	DefaultResetPulse       = 100 * time.Millisecond
)

// Range limits of a client link.
const (
	MinBaseTimeout = 10 * time.Millisecond
	MaxBaseTimeout = 60 * time.Second

	MaxRetryLimit      = 16
	MaxFastResendLimit = 255

	MaxReconnectRetries = 100
	MaxReconnectDelay   = 30 * time.Second
	MaxSettleDelay      = 10 * time.Second
	MaxResetPulse       = 5 * time.Second

	MinFrameSize = 16
	MaxFrameSize = 4096
)

// ClientConfig holds all configuration of a client link.
type ClientConfig struct {
	dialer transport.Dialer

	// Per-call retry policy.
	baseTimeout    time.Duration
	maxRetries     int
	maxFastResends int

	// Link health.
	degradeThreshold int
	reconnectRetries int
	reconnectDelay   time.Duration
	resetPulse       time.Duration // 0 disables the reset line
	settleDelay      time.Duration // wait after reset before re-dialing
	probeOnOpen      bool

	maxFrameSize int

	observer Observer
	handlers []LinkStateChangeHandler
	logger   logger.Logger
}

// NewClientConfig creates a client configuration reaching the device
// through dialer. opts are functional options applied in order; see With*
// functions.
func NewClientConfig(dialer transport.Dialer, opts ...ClientOption) (*ClientConfig, error) {
	if dialer == nil {
		return nil, errors.New("link: dialer must not be nil")
	}

	cfg := &ClientConfig{
		dialer:           dialer,
		baseTimeout:      DefaultBaseTimeout,
		maxRetries:       DefaultMaxRetries,
		maxFastResends:   DefaultMaxFastResends,
		degradeThreshold: DefaultDegradeThreshold,
		reconnectRetries: DefaultReconnectRetries,
		reconnectDelay:   DefaultReconnectDelay,
		maxFrameSize:     frame.DefaultMaxFrameSize,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// Dialer returns the configured dialer.
func (cfg *ClientConfig) Dialer() transport.Dialer { return cfg.dialer }

// BaseTimeout returns the deadline of the first attempt of a call.
func (cfg *ClientConfig) BaseTimeout() time.Duration { return cfg.baseTimeout }

// MaxRetries returns the number of send attempts per call.
func (cfg *ClientConfig) MaxRetries() int { return cfg.maxRetries }

// MaxFastResends returns the BAD_CS resend cap per call.
func (cfg *ClientConfig) MaxFastResends() int { return cfg.maxFastResends }

// RetryPolicy returns the per-call retry policy.
func (cfg *ClientConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseTimeout:    cfg.baseTimeout,
		MaxRetries:     cfg.maxRetries,
		MaxFastResends: cfg.maxFastResends,
	}
}

// DegradeThreshold returns the consecutive exhausted calls that degrade the link.
func (cfg *ClientConfig) DegradeThreshold() int { return cfg.degradeThreshold }

// ReconnectRetries returns the reopen attempts before the link goes down.
func (cfg *ClientConfig) ReconnectRetries() int { return cfg.reconnectRetries }

// ReconnectDelay returns the delay after the first failed reopen attempt.
func (cfg *ClientConfig) ReconnectDelay() time.Duration { return cfg.reconnectDelay }

// ResetPulse returns the reset line pulse width; 0 means disabled.
func (cfg *ClientConfig) ResetPulse() time.Duration { return cfg.resetPulse }

// SettleDelay returns the wait between reset and re-dial.
func (cfg *ClientConfig) SettleDelay() time.Duration { return cfg.settleDelay }

// ProbeOnOpen returns whether Open verifies the device with a PING.
func (cfg *ClientConfig) ProbeOnOpen() bool { return cfg.probeOnOpen }

// MaxFrameSize returns the reassembly bound for received frames.
func (cfg *ClientConfig) MaxFrameSize() int { return cfg.maxFrameSize }

// GetLogger returns the configured logger.
func (cfg *ClientConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ClientOption ---

// ClientOption is a functional option for configuring a ClientConfig.
type ClientOption interface {
	apply(*ClientConfig) error
}

type clientOptFunc func(*ClientConfig) error

func (f clientOptFunc) apply(cfg *ClientConfig) error { return f(cfg) }

// WithBaseTimeout sets the deadline of the first attempt. Each retry
// doubles the previous deadline.
func WithBaseTimeout(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if d < MinBaseTimeout || d > MaxBaseTimeout {
			return fmt.Errorf("link: base timeout %v out of range [%v, %v]", d, MinBaseTimeout, MaxBaseTimeout)
		}
		cfg.baseTimeout = d

		return nil
	})
}

// WithMaxRetries sets the number of send attempts per call, in [1, 16].
func WithMaxRetries(n int) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if n < 1 || n > MaxRetryLimit {
			return fmt.Errorf("link: max retries %d out of range [1, %d]", n, MaxRetryLimit)
		}
		cfg.maxRetries = n

		return nil
	})
}

// WithMaxFastResends caps the BAD_CS resends of one call, in [0, 255].
// 0 turns every BAD_CS reply into a regular retry.
func WithMaxFastResends(n int) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if n < 0 || n > MaxFastResendLimit {
			return fmt.Errorf("link: max fast resends %d out of range [0, %d]", n, MaxFastResendLimit)
		}
		cfg.maxFastResends = n

		return nil
	})
}

// WithDegradeThreshold sets how many consecutive exhausted calls degrade
// the link. The default 1 degrades on the first one.
func WithDegradeThreshold(n int) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if n < 1 {
			return fmt.Errorf("link: degrade threshold %d must be positive", n)
		}
		cfg.degradeThreshold = n

		return nil
	})
}

// WithReconnectRetries sets the reopen attempts before the link goes down.
func WithReconnectRetries(n int) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if n < 1 || n > MaxReconnectRetries {
			return fmt.Errorf("link: reconnect retries %d out of range [1, %d]", n, MaxReconnectRetries)
		}
		cfg.reconnectRetries = n

		return nil
	})
}

// WithReconnectDelay sets the delay after the first failed reopen attempt.
// The delay doubles after each further failure.
func WithReconnectDelay(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if d < 0 || d > MaxReconnectDelay {
			return fmt.Errorf("link: reconnect delay %v out of range [0, %v]", d, MaxReconnectDelay)
		}
		cfg.reconnectDelay = d

		return nil
	})
}

// WithResetPulse enables the hardware reset line during reconnect when the
// transport supports it. d is the pulse width; 0 disables it.
func WithResetPulse(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if d < 0 || d > MaxResetPulse {
			return fmt.Errorf("link: reset pulse %v out of range [0, %v]", d, MaxResetPulse)
		}
		cfg.resetPulse = d

		return nil
	})
}

// WithSettleDelay sets the wait between reset and re-dial, giving a
// rebooting device time to come up.
func WithSettleDelay(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if d < 0 || d > MaxSettleDelay {
			return fmt.Errorf("link: settle delay %v out of range [0, %v]", d, MaxSettleDelay)
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithProbeOnOpen makes Open send a PING before reporting the link open.
func WithProbeOnOpen(enabled bool) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		cfg.probeOnOpen = enabled

		return nil
	})
}

// WithMaxFrameSize sets the reassembly bound for received frames.
func WithMaxFrameSize(n int) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if n < MinFrameSize || n > MaxFrameSize {
			return fmt.Errorf("link: max frame size %d out of range [%d, %d]", n, MinFrameSize, MaxFrameSize)
		}
		cfg.maxFrameSize = n

		return nil
	})
}

// WithObserver sets the observer of every frame written or read.
func WithObserver(o Observer) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		cfg.observer = o

		return nil
	})
}

// WithLinkStateHandler adds link state change handlers.
func WithLinkStateHandler(handlers ...LinkStateChangeHandler) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		cfg.handlers = append(cfg.handlers, handlers...)

		return nil
	})
}

// WithLogger sets the logger of the client.
func WithLogger(l logger.Logger) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-robolink/command"
	"github.com/arloliu/go-robolink/internal/pool"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/transport"
)

// Client is the host end of a link.
//
// Calls are serialized: at most one request is outstanding at any time, and
// a second caller blocks until the first call returns. The link health
// state machine runs inside the call that triggers it, so a call that
// degrades the link returns only after the reconnect procedure finished.
type Client struct {
	cfg     *ClientConfig
	logger  logger.Logger
	metrics *Metrics
	health  *linkHealth
	eng     *engine

	// mu is the call gate. It guards every field below.
	mu        sync.Mutex
	dialer    transport.Dialer
	tr        transport.Transport
	resetLine transport.ResetLiner

	closed atomic.Bool
}

// NewClient creates a client. The link starts DOWN; call Open to connect.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("link: config must not be nil")
	}

	c := &Client{
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: &Metrics{},
		dialer:  cfg.dialer,
	}
	c.eng = newEngine(cfg.RetryPolicy(), cfg.maxFrameSize, cfg.observer, c.metrics, c.logger)
	c.health = newLinkHealth(cfg.degradeThreshold, c.logStateChange)
	c.health.AddHandler(cfg.handlers...)

	return c, nil
}

// Open connects the transport: DOWN → RECONNECTING → OPEN. With
// WithProbeOnOpen the device must answer a PING first. When every attempt
// fails the link stays DOWN and the error wraps ErrLinkDown.
func (c *Client) Open(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.health.State() == LinkOpen {
		return nil
	}

	c.health.fire(evExternalReconnect)

	return c.reconnectLocked(ctx, c.cfg.probeOnOpen)
}

// Call sends command with payload and returns the ACK payload.
//
// The error is a *TimeoutError when every attempt went unanswered, a
// *SemanticError when the device replied NACK, ErrLinkDown while the link
// is down, or ctx.Err() when ctx ended before a send.
func (c *Client) Call(ctx context.Context, cmd, payload string) (string, error) {
	if c.closed.Load() {
		return "", ErrClientClosed
	}
	if c.health.State() == LinkDown {
		return "", ErrLinkDown
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return "", ErrClientClosed
	}
	if c.health.State() == LinkDown || c.tr == nil {
		return "", ErrLinkDown
	}

	return c.callLocked(ctx, strings.ToUpper(strings.TrimSpace(cmd)), payload)
}

func (c *Client) callLocked(ctx context.Context, cmd, payload string) (string, error) {
	c.metrics.incCallCount()

	result, err := c.eng.call(ctx, c.tr, cmd, payload)
	switch {
	case err == nil:
		c.metrics.incCallSuccessCount()
		c.health.callSucceeded()

		return result, nil

	case errors.Is(err, ErrSemantic):
		// the device answered, so the link is healthy
		c.metrics.incCallRejectCount()
		c.health.callSucceeded()

	case errors.Is(err, ErrTimeout):
		c.metrics.incCallTimeoutCount()
		c.logger.Warn("robolink: call exhausted retries", "command", cmd, "error", err)

		if c.health.callExhausted() {
			c.health.fire(evReconnectBegin)
			if rerr := c.reconnectLocked(ctx, true); rerr != nil {
				c.logger.Error("robolink: reconnect failed", "dialer", c.dialer, "error", rerr)
			}
		}
	}

	return "", err
}

// Probe sends a PING. A probe left unanswered degrades the link and runs
// the reconnect procedure, exactly like an exhausted call.
func (c *Client) Probe(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.health.State() == LinkDown || c.tr == nil {
		return ErrLinkDown
	}

	_, err := c.eng.call(ctx, c.tr, command.Ping, "")
	if err == nil {
		c.health.callSucceeded()
		return nil
	}

	if errors.Is(err, ErrTimeout) && c.health.fire(evProbeFailed) {
		c.health.fire(evReconnectBegin)
		if rerr := c.reconnectLocked(ctx, true); rerr != nil {
			return rerr
		}
	}

	return err
}

// Reconnect runs the reconnect procedure from any state. It is the only way
// out of DOWN. A non-nil dialer replaces the configured one, e.g. to switch
// to another port or baud rate.
func (c *Client) Reconnect(ctx context.Context, dialer transport.Dialer) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if dialer != nil {
		c.dialer = dialer
	}

	c.health.fire(evExternalReconnect)

	return c.reconnectLocked(ctx, true)
}

// reconnectLocked runs the bounded reopen-and-probe loop in the
// RECONNECTING state and leaves the link OPEN or DOWN.
func (c *Client) reconnectLocked(ctx context.Context, probe bool) error {
	defer c.metrics.resetReconnectRetryGauge()

	var lastErr error
	delay := c.cfg.reconnectDelay

	for attempt := 1; attempt <= c.cfg.reconnectRetries; attempt++ {
		c.metrics.incReconnectCount()

		lastErr = c.reopen(ctx, probe)
		if lastErr == nil {
			c.health.fire(evProbeSucceeded)
			return nil
		}

		c.logger.Warn("robolink: reconnect attempt failed",
			"attempt", attempt, "maxAttempts", c.cfg.reconnectRetries,
			"dialer", c.dialer, "error", lastErr)

		if attempt == c.cfg.reconnectRetries {
			break
		}

		if err := pool.Sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
		delay *= 2
	}

	c.closeTransport()
	c.health.fire(evReconnectExhausted)

	return fmt.Errorf("%w: %w", ErrLinkDown, lastErr)
}

// reopen closes the transport, pulses the reset line when configured,
// dials again and optionally probes the device.
func (c *Client) reopen(ctx context.Context, probe bool) error {
	c.closeTransport()

	if c.resetLine != nil && c.cfg.resetPulse > 0 {
		if err := c.resetLine.PulseReset(c.cfg.resetPulse); err != nil {
			c.logger.Debug("robolink: reset pulse failed", "error", err)
		}
	}

	if err := pool.Sleep(ctx, c.cfg.settleDelay); err != nil {
		return err
	}

	tr, err := c.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.dialer, err)
	}

	if f, ok := tr.(transport.Flusher); ok {
		_ = f.Flush()
	}
	if rl, ok := tr.(transport.ResetLiner); ok {
		c.resetLine = rl
	}

	c.tr = tr
	c.eng.reset()

	c.logger.Debug("robolink: transport opened", "dialer", c.dialer)

	if !probe {
		return nil
	}

	if _, err := c.eng.call(ctx, tr, command.Ping, ""); err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	return nil
}

func (c *Client) closeTransport() {
	if c.tr == nil {
		return
	}

	if err := c.tr.Close(); err != nil {
		c.logger.Debug("robolink: close transport", "error", err)
	}
	c.tr = nil
}

// Close closes the transport and takes the link DOWN for good.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeTransport()
	c.health.fire(evShutdown)

	return nil
}

// LinkState returns the current link state.
func (c *Client) LinkState() LinkState {
	return c.health.State()
}

// AddLinkStateHandler adds handlers invoked on every link state transition.
func (c *Client) AddLinkStateHandler(handlers ...LinkStateChangeHandler) {
	c.health.AddHandler(handlers...)
}

// Dialer returns the dialer used by the next reconnect.
func (c *Client) Dialer() transport.Dialer {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dialer
}

// GetMetrics returns the metrics of the client.
func (c *Client) GetMetrics() *Metrics {
	return c.metrics
}

// GetLogger returns the logger of the client.
func (c *Client) GetLogger() logger.Logger {
	return c.logger
}

func (c *Client) logStateChange(prev LinkState, next LinkState) {
	c.logger.Info("robolink: link state changed", "prev", prev, "next", next)
}

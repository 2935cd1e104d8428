package link

import (
	"testing"
	"time"

	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDialer = transport.TCPDialer{Addr: "127.0.0.1:4000"}

func TestNewClientConfig_Defaults(t *testing.T) {
	cfg, err := NewClientConfig(testDialer)
	require.NoError(t, err)

	assert.Equal(t, "tcp://127.0.0.1:4000", cfg.Dialer().String())
	assert.Equal(t, DefaultBaseTimeout, cfg.BaseTimeout())
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries())
	assert.Equal(t, DefaultMaxFastResends, cfg.MaxFastResends())
	assert.Equal(t, DefaultDegradeThreshold, cfg.DegradeThreshold())
	assert.Equal(t, DefaultReconnectRetries, cfg.ReconnectRetries())
	assert.Equal(t, DefaultReconnectDelay, cfg.ReconnectDelay())
	assert.Zero(t, cfg.ResetPulse())
	assert.Zero(t, cfg.SettleDelay())
	assert.False(t, cfg.ProbeOnOpen())
	assert.Equal(t, frame.DefaultMaxFrameSize, cfg.MaxFrameSize())
	assert.NotNil(t, cfg.GetLogger())

	assert.Equal(t, DefaultRetryPolicy(), cfg.RetryPolicy())
}

func TestNewClientConfig_WithOptions(t *testing.T) {
	l := logger.Nop()
	cfg, err := NewClientConfig(testDialer,
		WithBaseTimeout(250*time.Millisecond),
		WithMaxRetries(5),
		WithMaxFastResends(0),
		WithDegradeThreshold(3),
		WithReconnectRetries(10),
		WithReconnectDelay(time.Second),
		WithResetPulse(50*time.Millisecond),
		WithSettleDelay(2*time.Second),
		WithProbeOnOpen(true),
		WithMaxFrameSize(512),
		WithLogger(l),
	)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.BaseTimeout())
	assert.Equal(t, 5, cfg.MaxRetries())
	assert.Zero(t, cfg.MaxFastResends())
	assert.Equal(t, 3, cfg.DegradeThreshold())
	assert.Equal(t, 10, cfg.ReconnectRetries())
	assert.Equal(t, time.Second, cfg.ReconnectDelay())
	assert.Equal(t, 50*time.Millisecond, cfg.ResetPulse())
	assert.Equal(t, 2*time.Second, cfg.SettleDelay())
	assert.True(t, cfg.ProbeOnOpen())
	assert.Equal(t, 512, cfg.MaxFrameSize())
	assert.Equal(t, l, cfg.GetLogger())

	assert.Equal(t, RetryPolicy{
		BaseTimeout:    250 * time.Millisecond,
		MaxRetries:     5,
		MaxFastResends: 0,
	}, cfg.RetryPolicy())
}

func TestNewClientConfig_NilDialer(t *testing.T) {
	_, err := NewClientConfig(nil)
	require.Error(t, err)
}

func TestNewClientConfig_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"base timeout too small", WithBaseTimeout(time.Millisecond)},
		{"base timeout too large", WithBaseTimeout(2 * MaxBaseTimeout)},
		{"zero retries", WithMaxRetries(0)},
		{"too many retries", WithMaxRetries(MaxRetryLimit + 1)},
		{"negative fast resends", WithMaxFastResends(-1)},
		{"too many fast resends", WithMaxFastResends(MaxFastResendLimit + 1)},
		{"zero degrade threshold", WithDegradeThreshold(0)},
		{"zero reconnect retries", WithReconnectRetries(0)},
		{"too many reconnect retries", WithReconnectRetries(MaxReconnectRetries + 1)},
		{"negative reconnect delay", WithReconnectDelay(-time.Second)},
		{"reconnect delay too large", WithReconnectDelay(MaxReconnectDelay + time.Second)},
		{"negative reset pulse", WithResetPulse(-time.Millisecond)},
		{"reset pulse too large", WithResetPulse(MaxResetPulse + time.Second)},
		{"settle delay too large", WithSettleDelay(MaxSettleDelay + time.Second)},
		{"frame size too small", WithMaxFrameSize(MinFrameSize - 1)},
		{"frame size too large", WithMaxFrameSize(MaxFrameSize + 1)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClientConfig(testDialer, tt.opt)
			require.Error(t, err)
		})
	}
}

// Package config loads robotctl and robotsim settings from TOML or YAML
// files. Command-line flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/arloliu/go-robolink/frame"
	"github.com/arloliu/go-robolink/link"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/transport"
	"gopkg.in/yaml.v3"
)

// ErrNoEndpoint is returned by Dialer when neither a serial port nor a TCP
// address is configured.
var ErrNoEndpoint = errors.New("config: no port or addr configured")

// Config holds the settings shared by robotctl and robotsim.
type Config struct {
	// Endpoint. Addr takes precedence over Port.
	Port string
	Baud int
	Addr string

	// Client link.
	Timeout          time.Duration
	Retries          int
	FastResends      int
	DegradeThreshold int
	ReconnectRetries int
	ReconnectDelay   time.Duration
	ResetPulse       time.Duration
	Settle           time.Duration
	ProbeOnOpen      bool
	MaxFrameSize     int

	LogLevel string
	SaveLog  string

	// Simulator.
	Listen     string
	Sonar      int
	SonarNoise int
	LineNoise  float64
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Baud:             transport.DefaultBaud,
		Timeout:          link.DefaultBaseTimeout,
		Retries:          link.DefaultMaxRetries,
		FastResends:      link.DefaultMaxFastResends,
		DegradeThreshold: link.DefaultDegradeThreshold,
		ReconnectRetries: link.DefaultReconnectRetries,
		ReconnectDelay:   link.DefaultReconnectDelay,
		MaxFrameSize:     frame.DefaultMaxFrameSize,
		LogLevel:         "warn",
		Sonar:            100,
	}
}

type fileConfig struct {
	Port             *string  `toml:"port" yaml:"port"`
	Baud             *int     `toml:"baud" yaml:"baud"`
	Addr             *string  `toml:"addr" yaml:"addr"`
	Timeout          *string  `toml:"timeout" yaml:"timeout"`
	Retries          *int     `toml:"retries" yaml:"retries"`
	FastResends      *int     `toml:"fast_resends" yaml:"fast_resends"`
	DegradeThreshold *int     `toml:"degrade_threshold" yaml:"degrade_threshold"`
	ReconnectRetries *int     `toml:"reconnect_retries" yaml:"reconnect_retries"`
	ReconnectDelay   *string  `toml:"reconnect_delay" yaml:"reconnect_delay"`
	ResetPulse       *string  `toml:"reset_pulse" yaml:"reset_pulse"`
	Settle           *string  `toml:"settle" yaml:"settle"`
	ProbeOnOpen      *bool    `toml:"probe_on_open" yaml:"probe_on_open"`
	MaxFrameSize     *int     `toml:"max_frame_size" yaml:"max_frame_size"`
	LogLevel         *string  `toml:"log_level" yaml:"log_level"`
	SaveLog          *string  `toml:"save_log" yaml:"save_log"`
	Listen           *string  `toml:"listen" yaml:"listen"`
	Sonar            *int     `toml:"sonar" yaml:"sonar"`
	SonarNoise       *int     `toml:"sonar_noise" yaml:"sonar_noise"`
	LineNoise        *float64 `toml:"line_noise" yaml:"line_noise"`
}

// Load reads path over the defaults. The format follows the extension:
// .toml, or .yaml and .yml. Unknown keys are an error. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	var raw fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.Decode(string(data), &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
		}

	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}

	default:
		return Config{}, fmt.Errorf("load config %s: unsupported extension %q", path, ext)
	}

	if err := raw.applyTo(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	return cfg, nil
}

func (raw *fileConfig) applyTo(cfg *Config) error {
	setString(&cfg.Port, raw.Port)
	setString(&cfg.Addr, raw.Addr)
	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.SaveLog, raw.SaveLog)
	setString(&cfg.Listen, raw.Listen)

	setInt(&cfg.Baud, raw.Baud)
	setInt(&cfg.Retries, raw.Retries)
	setInt(&cfg.FastResends, raw.FastResends)
	setInt(&cfg.DegradeThreshold, raw.DegradeThreshold)
	setInt(&cfg.ReconnectRetries, raw.ReconnectRetries)
	setInt(&cfg.MaxFrameSize, raw.MaxFrameSize)
	setInt(&cfg.Sonar, raw.Sonar)
	setInt(&cfg.SonarNoise, raw.SonarNoise)

	if raw.ProbeOnOpen != nil {
		cfg.ProbeOnOpen = *raw.ProbeOnOpen
	}
	if raw.LineNoise != nil {
		cfg.LineNoise = *raw.LineNoise
	}

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"timeout", raw.Timeout, &cfg.Timeout},
		{"reconnect_delay", raw.ReconnectDelay, &cfg.ReconnectDelay},
		{"reset_pulse", raw.ResetPulse, &cfg.ResetPulse},
		{"settle", raw.Settle, &cfg.Settle},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(*d.src))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// Dialer returns the transport dialer of the configured endpoint.
func (c Config) Dialer() (transport.Dialer, error) {
	switch {
	case c.Addr != "":
		return transport.TCPDialer{Addr: c.Addr}, nil
	case c.Port != "":
		return transport.SerialDialer{Port: c.Port, Baud: c.Baud}, nil
	default:
		return nil, ErrNoEndpoint
	}
}

// Level returns the parsed log level.
func (c Config) Level() (logger.Level, error) {
	return logger.ParseLevel(c.LogLevel)
}

// ClientOptions returns the link options for the configured values.
func (c Config) ClientOptions() []link.ClientOption {
	return []link.ClientOption{
		link.WithBaseTimeout(c.Timeout),
		link.WithMaxRetries(c.Retries),
		link.WithMaxFastResends(c.FastResends),
		link.WithDegradeThreshold(c.DegradeThreshold),
		link.WithReconnectRetries(c.ReconnectRetries),
		link.WithReconnectDelay(c.ReconnectDelay),
		link.WithResetPulse(c.ResetPulse),
		link.WithSettleDelay(c.Settle),
		link.WithProbeOnOpen(c.ProbeOnOpen),
		link.WithMaxFrameSize(c.MaxFrameSize),
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-robolink/commlog"
	"github.com/arloliu/go-robolink/internal/config"
	"github.com/arloliu/go-robolink/link"
	"github.com/arloliu/go-robolink/logger"
	"github.com/spf13/cobra"
)

// app holds the state shared by every robotctl subcommand.
type app struct {
	cfgFile string
	flags   overrides

	cfg    config.Config
	log    *commlog.Log
	logger logger.Logger
}

// overrides are the persistent flags that take precedence over the config file.
type overrides struct {
	port       string
	baud       int
	addr       string
	timeout    time.Duration
	retries    int
	reconnects int
	settle     time.Duration
	resetPulse time.Duration
	probe      bool
	logLevel   string
	saveLog    string
}

func newRootCmd() *cobra.Command {
	a := &app{log: commlog.New()}

	root := &cobra.Command{
		Use:   "robotctl",
		Short: "Robot link CLI: run command tokens, scripts or an interactive shell",
		Long: `robotctl drives a robot over the framed serial protocol
(^SS|CMD|PAYLOAD*CS$). Every request is retried with exponential
backoff, and a link that stops answering is reset and reopened.

Connect through a local serial port with --port, or through a
serial-to-TCP bridge such as ser2net with --addr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (.toml, .yaml or .yml)")
	pf.StringVar(&a.flags.port, "port", "", "serial port, e.g. /dev/ttyUSB0 or COM6")
	pf.IntVar(&a.flags.baud, "baud", 0, "baud rate (default 9600)")
	pf.StringVar(&a.flags.addr, "addr", "", "serial-to-TCP bridge address host:port (overrides --port)")
	pf.DurationVar(&a.flags.timeout, "timeout", 0, "first attempt timeout, doubled on each retry (default 600ms)")
	pf.IntVar(&a.flags.retries, "retries", 0, "send attempts per command (default 3)")
	pf.IntVar(&a.flags.reconnects, "reconnect-retries", 0, "reopen attempts before the link is declared down (default 5)")
	pf.DurationVar(&a.flags.settle, "settle", 0, "wait after a reset before reopening the port")
	pf.DurationVar(&a.flags.resetPulse, "reset-pulse", link.DefaultResetPulse, "DTR reset pulse width on reconnect, 0 disables")
	pf.BoolVar(&a.flags.probe, "probe", true, "PING the robot when opening the link")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default \"warn\")")
	pf.StringVar(&a.flags.saveLog, "save-log", "", "write the communication log to this file on exit (.txt, .json or .csv)")

	root.AddCommand(
		newCallCmd(a),
		newScriptCmd(a),
		newShellCmd(a),
		newPingCmd(a),
	)

	return root
}

// load reads the config file and applies the flags the user set.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = a.flags.port
	}
	if flags.Changed("baud") {
		cfg.Baud = a.flags.baud
	}
	if flags.Changed("addr") {
		cfg.Addr = a.flags.addr
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.flags.timeout
	}
	if flags.Changed("retries") {
		cfg.Retries = a.flags.retries
	}
	if flags.Changed("reconnect-retries") {
		cfg.ReconnectRetries = a.flags.reconnects
	}
	if flags.Changed("settle") {
		cfg.Settle = a.flags.settle
	}
	if flags.Changed("reset-pulse") || a.cfgFile == "" {
		cfg.ResetPulse = a.flags.resetPulse
	}
	if flags.Changed("probe") || a.cfgFile == "" {
		cfg.ProbeOnOpen = a.flags.probe
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if flags.Changed("save-log") {
		cfg.SaveLog = a.flags.saveLog
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.NewSlogWriter(cmd.ErrOrStderr(), level, true)

	return nil
}

// withClient opens a client, runs fn and closes the client again. The
// communication log is saved afterwards when --save-log is set, also when
// fn failed.
func (a *app) withClient(ctx context.Context, fn func(ctx context.Context, c *link.Client) error) (err error) {
	dialer, err := a.cfg.Dialer()
	if err != nil {
		if errors.Is(err, config.ErrNoEndpoint) {
			return errors.New("no robot endpoint: set --port or --addr")
		}

		return err
	}

	opts := append(a.cfg.ClientOptions(),
		link.WithLogger(a.logger),
		link.WithObserver(a.log),
	)
	cfg, err := link.NewClientConfig(dialer, opts...)
	if err != nil {
		return err
	}

	c, err := link.NewClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
		if serr := a.saveLog(); serr != nil && err == nil {
			err = serr
		}
	}()

	if err := c.Open(ctx); err != nil {
		return fmt.Errorf("open %s: %w", dialer, err)
	}

	return fn(ctx, c)
}

func (a *app) saveLog() error {
	if a.cfg.SaveLog == "" {
		return nil
	}
	if err := a.log.Save(a.cfg.SaveLog); err != nil {
		return fmt.Errorf("save log: %w", err)
	}
	a.logger.Info("robolink: communication log saved", "path", a.cfg.SaveLog, "entries", a.log.Len())

	return nil
}

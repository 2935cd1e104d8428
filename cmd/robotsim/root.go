package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-robolink/commlog"
	"github.com/arloliu/go-robolink/internal/config"
	"github.com/arloliu/go-robolink/internal/sim"
	"github.com/arloliu/go-robolink/logger"
	"github.com/arloliu/go-robolink/responder"
	"github.com/arloliu/go-robolink/transport"
	"github.com/spf13/cobra"
)

type options struct {
	cfgFile     string
	seed        uint64
	dropRate    float64
	noDupDetect bool
	dupWindow   time.Duration
	irLeft      bool
	irRight     bool
}

func newRootCmd() *cobra.Command {
	var (
		o   options
		cfg = config.Default()
	)

	root := &cobra.Command{
		Use:   "robotsim",
		Short: "Serve a simulated robot over TCP or a serial port",
		Long: `robotsim answers the robot command vocabulary (PING, HELP, STATUS,
V, M, R, S, B, I) with a simulated drive, sonar and IR sensors.

Listen on TCP with --listen, or serve a serial port with --port, for
example one end of a virtual null-modem pair.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.cfgFile != "" {
				loaded, err := config.Load(o.cfgFile)
				if err != nil {
					return err
				}
				applyChanged(cmd, &loaded, cfg)
				cfg = loaded
			}

			return serve(cmd.Context(), cmd, cfg, o)
		},
	}

	f := root.Flags()
	f.StringVar(&o.cfgFile, "config", "", "config file (.toml, .yaml or .yml)")
	f.StringVar(&cfg.Listen, "listen", "", "TCP listen address, e.g. 127.0.0.1:7000")
	f.StringVar(&cfg.Port, "port", "", "serial port to serve")
	f.IntVar(&cfg.Baud, "baud", cfg.Baud, "baud rate")
	f.IntVar(&cfg.MaxFrameSize, "max-frame-size", cfg.MaxFrameSize, "reassembly bound in bytes")
	f.IntVar(&cfg.Sonar, "sonar", cfg.Sonar, "sonar distance in cm")
	f.IntVar(&cfg.SonarNoise, "sonar-noise", 0, "uniform sonar noise in +/- cm")
	f.BoolVar(&o.irLeft, "ir-left", false, "left IR sensor triggered")
	f.BoolVar(&o.irRight, "ir-right", false, "right IR sensor triggered")
	f.Float64Var(&cfg.LineNoise, "line-noise", 0, "probability of a flipped bit per reply byte")
	f.Float64Var(&o.dropRate, "drop-rate", 0, "probability of a dropped reply byte")
	f.Uint64Var(&o.seed, "seed", 1, "random seed for sonar and line noise")
	f.BoolVar(&o.noDupDetect, "no-dup-detect", false, "run repeated requests again instead of replaying the cached reply")
	f.DurationVar(&o.dupWindow, "dup-window", responder.DefaultDuplicateWindow, "how long a repeated request counts as a retransmit")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&cfg.SaveLog, "save-log", "", "write the communication log to this file on exit (.txt, .json or .csv)")

	return root
}

// applyChanged copies the flags the user set from flagged over loaded.
func applyChanged(cmd *cobra.Command, loaded *config.Config, flagged config.Config) {
	flags := cmd.Flags()
	set := map[string]func(){
		"listen":         func() { loaded.Listen = flagged.Listen },
		"port":           func() { loaded.Port = flagged.Port },
		"baud":           func() { loaded.Baud = flagged.Baud },
		"max-frame-size": func() { loaded.MaxFrameSize = flagged.MaxFrameSize },
		"sonar":          func() { loaded.Sonar = flagged.Sonar },
		"sonar-noise":    func() { loaded.SonarNoise = flagged.SonarNoise },
		"line-noise":     func() { loaded.LineNoise = flagged.LineNoise },
		"log-level":      func() { loaded.LogLevel = flagged.LogLevel },
		"save-log":       func() { loaded.SaveLog = flagged.SaveLog },
	}
	for name, apply := range set {
		if flags.Changed(name) {
			apply()
		}
	}
}

func serve(ctx context.Context, cmd *cobra.Command, cfg config.Config, o options) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	l := logger.NewSlogWriter(cmd.ErrOrStderr(), level, true)

	robotOpts := []sim.Option{
		sim.WithSonar(cfg.Sonar),
		sim.WithIR(o.irLeft, o.irRight),
	}
	if cfg.SonarNoise > 0 {
		robotOpts = append(robotOpts, sim.WithSonarNoise(cfg.SonarNoise, o.seed))
	}
	robot := sim.New(robotOpts...)

	disp := responder.NewDispatcher(l)
	robot.Register(disp)

	log := commlog.New()
	noisy := func(tr transport.Transport) transport.Transport {
		if cfg.LineNoise <= 0 && o.dropRate <= 0 {
			return tr
		}

		return sim.NewNoisyTransport(tr, cfg.LineNoise, o.dropRate, o.seed)
	}

	rcfg, err := responder.NewResponderConfig(
		responder.WithMaxFrameSize(cfg.MaxFrameSize),
		responder.WithDuplicateDetection(!o.noDupDetect),
		responder.WithDuplicateWindow(o.dupWindow),
		responder.WithObserver(log),
		responder.WithTransportWrapper(noisy),
		responder.WithLogger(l),
	)
	if err != nil {
		return err
	}

	defer func() {
		if cfg.SaveLog == "" {
			return
		}
		if err := log.Save(cfg.SaveLog); err != nil {
			l.Error("robolink: save communication log", "path", cfg.SaveLog, "error", err)
		}
	}()

	switch {
	case cfg.Listen != "":
		ln, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "robotsim listening on", ln.Addr())

		return responder.ListenAndServe(ctx, ln, disp, rcfg)

	case cfg.Port != "":
		dialer := transport.SerialDialer{Port: cfg.Port, Baud: cfg.Baud}
		tr, err := dialer.Dial(ctx)
		if err != nil {
			return err
		}
		defer tr.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "robotsim serving", dialer)

		r, err := responder.New(noisy(tr), disp, rcfg)
		if err != nil {
			return err
		}

		return r.Serve(ctx)

	default:
		return errors.New("set --listen or --port")
	}
}

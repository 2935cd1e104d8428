package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arloliu/go-robolink/command"
	"github.com/arloliu/go-robolink/commlog"
	"github.com/arloliu/go-robolink/link"
	"github.com/arloliu/go-robolink/transport"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const shellHelp = `Available commands:
  ping                                  health check
  help                                  show this help
  status                                robot status
  v <0..255>                            set linear speed (PWM)
  m <cm>                                move by centimeters (+forward, -back)
  r <deg>                               rotate by degrees (+right, -left)
  s                                     emergency stop
  b                                     sonar read (cm)
  i                                     IR sensor read
  state                                 link state and counters
  history                               show the communication log
  save-log <path>                       write the communication log (.txt, .json, .csv)
  reconnect [--port P] [--baud B] [--addr A]
                                        reopen the link and PING the robot
  quit / exit                           leave the shell

Raw tokens are sent as-is:  PING  V:160  M:20  R:-90  B  STATUS  S`

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(ctx context.Context, c *link.Client) error {
				sh := &shell{
					c:    c,
					log:  a.log,
					baud: a.cfg.Baud,
					in:   cmd.InOrStdin(),
					out:  cmd.OutOrStdout(),
				}

				return sh.run(ctx)
			})
		},
	}
}

// shell is the interactive read-eval loop of robotctl.
type shell struct {
	c    *link.Client
	log  *commlog.Log
	baud int
	in   io.Reader
	out  io.Writer
}

var errQuit = errors.New("quit")

func (sh *shell) run(ctx context.Context) error {
	sh.c.AddLinkStateHandler(func(_, next link.LinkState) {
		sh.println(stateStyles[next.String()], "link "+next.String())
	})

	sh.println(infoStyle, shellHelp)

	scanner := bufio.NewScanner(sh.in)
	for {
		fmt.Fprint(sh.out, promptStyle.Render("robot>")+" ")
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}

		if err := sh.exec(ctx, scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}

			return err
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
	}
}

// exec runs one shell line. Command failures are printed; only errQuit
// and context errors end the shell.
func (sh *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "exit":
		return errQuit

	case "h", "?", "help":
		sh.println(infoStyle, shellHelp)

	case "ping":
		sh.call(ctx, "PING", sh.c.Ping)

	case "status":
		sh.call(ctx, "STATUS", sh.c.Status)

	case "v":
		if n, ok := sh.intArg(args, "v <0..255>"); ok {
			if _, err := command.Validate(command.Speed, strconv.Itoa(n)); err != nil {
				sh.fail("V "+args[0], err)
				break
			}
			sh.call(ctx, "V "+args[0], func(ctx context.Context) (string, error) {
				return sh.c.SetSpeed(ctx, uint8(n))
			})
		}

	case "m":
		if n, ok := sh.intArg(args, "m <cm>"); ok {
			sh.call(ctx, "M "+args[0], func(ctx context.Context) (string, error) {
				return sh.c.Move(ctx, n)
			})
		}

	case "r":
		if n, ok := sh.intArg(args, "r <deg>"); ok {
			sh.call(ctx, "R "+args[0], func(ctx context.Context) (string, error) {
				return sh.c.Rotate(ctx, n)
			})
		}

	case "s":
		sh.call(ctx, "S", sh.c.Stop)

	case "b":
		sh.call(ctx, "B", func(ctx context.Context) (string, error) {
			cm, err := sh.c.Sonar(ctx)
			return strconv.Itoa(cm) + " cm", err
		})

	case "i":
		sh.call(ctx, "I", sh.c.IR)

	case "state":
		sh.printState()

	case "history":
		fmt.Fprint(sh.out, history(sh.log))

	case "save-log", "savelog":
		if len(args) == 0 {
			sh.println(warnStyle, "! missing argument, usage: save-log <path>")
			break
		}
		if err := sh.log.Save(args[0]); err != nil {
			sh.fail("save-log", err)
			break
		}
		sh.println(okStyle, "✔ log saved to "+args[0])

	case "reconnect":
		sh.reconnect(ctx, args)

	default:
		name, _ := command.ParseToken(fields[0])
		if _, known := command.Lookup(name); !known && !strings.Contains(fields[0], ":") {
			sh.println(warnStyle, "! unknown command, type 'help'")
			break
		}
		token := strings.Join(fields, " ")
		sh.call(ctx, token, func(ctx context.Context) (string, error) {
			return sh.c.Do(ctx, token)
		})
	}

	return ctx.Err()
}

func (sh *shell) reconnect(ctx context.Context, args []string) {
	fs := pflag.NewFlagSet("reconnect", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	port := fs.String("port", "", "serial port")
	baud := fs.Int("baud", 0, "baud rate")
	addr := fs.String("addr", "", "serial-to-TCP bridge address")
	if err := fs.Parse(args); err != nil {
		sh.println(warnStyle, "! "+err.Error()+", usage: reconnect [--port P] [--baud B] [--addr A]")
		return
	}

	dialer := reconnectDialer(sh.c.Dialer(), *port, *baud, *addr, sh.baud)
	if err := sh.c.Reconnect(ctx, dialer); err != nil {
		sh.fail("reconnect", err)
		return
	}
	sh.println(okStyle, "✔ reconnected to "+sh.c.Dialer().String()+" and alive")
}

// reconnectDialer returns the dialer for a shell reconnect, or nil to reuse
// the current one. An address switches to TCP; a port or baud rate reopens
// a serial port.
func reconnectDialer(cur transport.Dialer, port string, baud int, addr string, defaultBaud int) transport.Dialer {
	if addr != "" {
		return transport.TCPDialer{Addr: addr}
	}
	if port == "" && baud <= 0 {
		return nil
	}

	if sd, ok := cur.(transport.SerialDialer); ok {
		return sd.With(port, baud)
	}
	if port == "" {
		return nil
	}
	if baud <= 0 {
		baud = defaultBaud
	}

	return transport.SerialDialer{Port: port, Baud: baud}
}

func (sh *shell) printState() {
	state := sh.c.LinkState().String()
	m := sh.c.GetMetrics()

	sh.println(stateStyles[state], "link "+state+" via "+sh.c.Dialer().String())
	sh.println(infoStyle, fmt.Sprintf(
		"calls=%d ok=%d timeouts=%d rejects=%d retries=%d fast_resends=%d stale=%d decode_errors=%d reconnects=%d",
		m.CallCount.Load(), m.CallSuccessCount.Load(), m.CallTimeoutCount.Load(), m.CallRejectCount.Load(),
		m.RetryCount.Load(), m.FastResendCount.Load(), m.StaleFrameCount.Load(), m.DecodeErrorCount.Load(),
		m.ReconnectCount.Load(),
	))
}

func (sh *shell) intArg(args []string, usage string) (int, bool) {
	if len(args) == 0 {
		sh.println(warnStyle, "! missing argument, usage: "+usage)
		return 0, false
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		sh.println(warnStyle, fmt.Sprintf("! invalid number %q, usage: %s", args[0], usage))
		return 0, false
	}

	return n, true
}

func (sh *shell) call(ctx context.Context, label string, fn func(context.Context) (string, error)) {
	result, err := fn(ctx)
	if err != nil {
		sh.fail(label, err)
		return
	}
	sh.println(okStyle, "✔ "+label+" -> "+result)
}

func (sh *shell) fail(label string, err error) {
	sh.println(errorStyle, "✘ "+label+" failed: "+err.Error())
}

func (sh *shell) println(style lipgloss.Style, msg string) {
	fmt.Fprintln(sh.out, style.Render(msg))
}

// Command robotctl talks to a robot over the framed serial protocol. It runs
// one-shot command tokens, command scripts, or an interactive shell.
//
// Usage examples:
//
//	robotctl --port /dev/ttyUSB0 shell
//	robotctl --port /dev/ttyUSB0 --baud 115200 call PING V:160 M:20 B STATUS
//	robotctl --addr 127.0.0.1:7000 script cmds.txt --save-log comm.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}

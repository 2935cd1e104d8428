// Command robotsim serves a simulated robot over TCP or a serial port. It
// answers the same command vocabulary as the firmware and can inject line
// noise to exercise the client's retry and resend paths.
//
// Usage examples:
//
//	robotsim --listen 127.0.0.1:7000
//	robotsim --port /dev/ttyUSB1 --baud 115200 --line-noise 0.01
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
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

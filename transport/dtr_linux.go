//go:build linux

package transport

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// pulseDTR clears the DTR modem line of the tty at path for d, then sets it.
//
// Boards such as the Arduino Uno wire DTR through a capacitor to the MCU
// reset pin, so the falling edge restarts the firmware.
func pulseDTR(path string, d time.Duration) error {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("transport: open %s for DTR: %w", path, err)
	}
	defer f.Close()

	fd := int(f.Fd())

	if err := unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, unix.TIOCM_DTR); err != nil {
		return fmt.Errorf("transport: clear DTR on %s: %w", path, err)
	}

	time.Sleep(d)

	if err := unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, unix.TIOCM_DTR); err != nil {
		return fmt.Errorf("transport: set DTR on %s: %w", path, err)
	}

	return nil
}

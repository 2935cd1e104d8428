//go:build !linux

package transport

import "time"

func pulseDTR(_ string, _ time.Duration) error {
	return ErrResetUnsupported
}

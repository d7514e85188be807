//go:build !linux

package probe

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by OpenI2C on platforms without i2c-dev.
var ErrUnsupported = errors.New("probe: i2c-dev is only available on linux")

// I2C is unavailable on this platform.
type I2C struct{}

// OpenI2C always fails on this platform.
func OpenI2C(device string, address uint16) (*I2C, error) {
	return nil, fmt.Errorf("opening %s: %w", device, ErrUnsupported)
}

func (b *I2C) Write(register byte, p []byte) error { return ErrUnsupported }
func (b *I2C) Read(register byte, p []byte) error { return ErrUnsupported }
func (b *I2C) Close() error { return nil }

// Package probe reads engineering values from the soil probe over its
// register bus.
package probe

import "fmt"

// DefaultAddress is the probe's fixed bus address.
const DefaultAddress = 0x36

// Bus is a register-addressed transport to one device. The device address
// is fixed when the Bus is opened.
type Bus interface {
	// Write sends p to the device register.
	Write(register byte, p []byte) error
	// Read fills p from the device register.
	Read(register byte, p []byte) error
}

// BusError is a transaction-level failure talking to the probe.
type BusError struct {
	Op       string // "write" or "read"
	Register byte
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("probe: %s register 0x%02x: %v", e.Op, e.Register, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

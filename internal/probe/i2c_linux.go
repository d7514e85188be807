//go:build linux

package probe

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// i2cSlave is the i2c-dev ioctl that selects the target device address.
const i2cSlave = 0x0703

// I2C is a Bus on a Linux i2c-dev character device.
type I2C struct {
	fd      int
	device  string
	address uint16
}

// OpenI2C opens device (e.g. "/dev/i2c-1") and binds it to address.
func OpenI2C(device string, address uint16) (*I2C, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, int(address)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("selecting address 0x%02x on %s: %w", address, device, err)
	}
	return &I2C{fd: fd, device: device, address: address}, nil
}

// Write sends the register byte followed by p in one transaction.
func (b *I2C) Write(register byte, p []byte) error {
	msg := make([]byte, 0, len(p)+1)
	msg = append(msg, register)
	msg = append(msg, p...)
	return b.write(msg)
}

// Read selects register and then reads len(p) bytes.
func (b *I2C) Read(register byte, p []byte) error {
	if err := b.write([]byte{register}); err != nil {
		return err
	}
	n, err := unix.Read(b.fd, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short read: %d of %d bytes", n, len(p))
	}
	return nil
}

func (b *I2C) write(msg []byte) error {
	n, err := unix.Write(b.fd, msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(msg))
	}
	return nil
}

// Close releases the device.
func (b *I2C) Close() error {
	return unix.Close(b.fd)
}

func (b *I2C) String() string {
	return fmt.Sprintf("%s@0x%02x", b.device, b.address)
}

//go:build linux

package daemon

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	// DefaultI2CBus is the bus the fan MCU sits on for every board revision after the first.
	DefaultI2CBus = "/dev/i2c-1"

	i2cAddress = 0x1a
	i2cSlave   = 0x0703 // I2C_SLAVE from linux/i2c-dev.h
)

// I2CFan talks to the ArgonOne case MCU.
type I2CFan struct {
	fd int
}

func OpenI2CFan(device string) (*I2CFan, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", device, err)
	}
	if err = unix.IoctlSetInt(fd, i2cSlave, i2cAddress); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error selecting I2C address %#x: %w", i2cAddress, err)
	}
	return &I2CFan{fd: fd}, nil
}

func (f *I2CFan) SetSpeed(speed int) error {
	// register 0 holds the duty cycle
	n, err := unix.Write(f.fd, []byte{0x00, byte(speed)})
	if err != nil {
		return fmt.Errorf("fan control I2C command failed: %w", err)
	}
	if n != 2 {
		return fmt.Errorf("fan control I2C command failed: short write (%d bytes)", n)
	}
	return nil
}

func (f *I2CFan) Close() error {
	return unix.Close(f.fd)
}

//go:build !linux

package daemon

import "errors"

const DefaultI2CBus = ""

type I2CFan struct{}

func OpenI2CFan(string) (*I2CFan, error) {
	return nil, errors.New("I2C fan control is only supported on linux")
}

func (f *I2CFan) SetSpeed(int) error { return nil }

func (f *I2CFan) Close() error { return nil }

//go:build !linux

package daemon

import (
	"errors"
	"time"
)

type PowerButton struct{}

func OpenPowerButton(string, func(time.Duration)) (*PowerButton, error) {
	return nil, errors.New("power button monitoring is only supported on linux")
}

func (b *PowerButton) Close() error { return nil }

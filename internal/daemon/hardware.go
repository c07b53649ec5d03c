package daemon

import (
	"context"
	"sync"
)

// Fan drives the case fan.
type Fan interface {
	// SetSpeed writes a speed in [0, 100].
	SetSpeed(speed int) error
	Close() error
}

// TempSource reads the SoC temperature in °C.
type TempSource interface {
	Temperature(ctx context.Context) (float64, error)
}

// Notifier publishes value changes and power button events.
type Notifier interface {
	NotifyValue(key string, value interface{})
	NotifyEvent(name string)
}

type nopNotifier struct{}

func (nopNotifier) NotifyValue(string, interface{}) {}
func (nopNotifier) NotifyEvent(string)              {}

// MemoryFan is a Fan that only remembers the last speed.
// It backs the daemon in dry-run mode.
type MemoryFan struct {
	mutex  sync.Mutex
	speeds []int
	Err    error
}

func (f *MemoryFan) SetSpeed(speed int) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.speeds = append(f.speeds, speed)
	return nil
}

// Speeds returns every speed written so far.
func (f *MemoryFan) Speeds() []int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]int(nil), f.speeds...)
}

func (f *MemoryFan) Close() error { return nil }

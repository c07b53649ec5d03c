//go:build linux

package daemon

import (
	"fmt"
	"time"

	"github.com/warthog618/gpiod"
	"github.com/warthog618/gpiod/device/rpi"
)

// PowerButton watches the case MCU power signal on BCM 4.
type PowerButton struct {
	chip    *gpiod.Chip
	line    *gpiod.Line
	timer   pulseTimer
	onPulse func(time.Duration)
}

// OpenPowerButton requests the line with edge detection on both edges.
// onPulse is called from the gpiod event goroutine.
func OpenPowerButton(chipName string, onPulse func(time.Duration)) (*PowerButton, error) {
	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer("argononed"))
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", chipName, err)
	}

	b := &PowerButton{chip: chip, onPulse: onPulse}
	b.line, err = chip.RequestLine(rpi.GPIO4,
		gpiod.AsInput,
		gpiod.WithPullDown,
		gpiod.WithBothEdges,
		gpiod.WithEventHandler(b.handle))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("error requesting GPIO4: %w", err)
	}
	return b, nil
}

func (b *PowerButton) handle(evt gpiod.LineEvent) {
	switch evt.Type {
	case gpiod.LineEventRisingEdge:
		b.timer.rising(evt.Timestamp)
	case gpiod.LineEventFallingEdge:
		if pulse, ok := b.timer.falling(evt.Timestamp); ok {
			b.onPulse(pulse)
		}
	}
}

func (b *PowerButton) Close() error {
	b.line.Close()
	return b.chip.Close()
}

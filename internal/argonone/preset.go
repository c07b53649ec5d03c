package argonone

import (
	"fmt"
)

// Preset is a named fan control command, as offered by the applet menu.
type Preset string

const (
	PresetResume      Preset = "resume"
	PresetHoldOff     Preset = "hold_off"
	PresetHoldMax     Preset = "hold_max"
	PresetHoldCurrent Preset = "hold_current"
	PresetToggle      Preset = "toggle"
)

// Presets lists the accepted presets in menu order.
var Presets = []Preset{PresetResume, PresetHoldOff, PresetHoldMax, PresetHoldCurrent, PresetToggle}

// ApplyPreset issues the commands for p.
func (c *Client) ApplyPreset(p Preset) error {
	switch p {
	case PresetResume:
		c.Resume()
	case PresetHoldOff:
		c.HoldOff()
	case PresetHoldMax:
		c.HoldMax()
	case PresetHoldCurrent:
		c.HoldCurrent()
	case PresetToggle:
		c.Toggle()
	default:
		return fmt.Errorf("unknown preset %q", p)
	}
	return nil
}

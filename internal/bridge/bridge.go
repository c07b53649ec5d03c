// Package bridge exposes the fan state and controls outside of D-Bus,
// over MQTT and HTTP.
package bridge

import (
	"github.com/oblq/argonone/internal/argonone"
)

// Device is the part of argonone.Client the bridges drive.
type Device interface {
	State() argonone.DeviceState
	ApplyPreset(p argonone.Preset) error
	SetFanControl(enabled bool, speed int) error
}

package argonone

// UnknownFanSpeed is the fan speed before any value was received.
const UnknownFanSpeed = -1

// DeviceState is the local view of the daemon's state.
type DeviceState struct {
	FanSpeed          int     `json:"fan_speed"`
	FanControlEnabled bool    `json:"fan_control_enabled"`
	Temperature       float64 `json:"temperature"`

	// HasTemperature is false until a temperature was queried or notified.
	HasTemperature bool `json:"has_temperature"`

	// PowerControlEnabled is tracked but not surfaced to observers.
	PowerControlEnabled bool `json:"power_control_enabled"`
}

// NewDeviceState returns the state used before the daemon answered.
func NewDeviceState() DeviceState {
	return DeviceState{
		FanSpeed:            UnknownFanSpeed,
		FanControlEnabled:   true,
		PowerControlEnabled: true,
	}
}

// FanSpeedKnown reports whether a fan speed was received.
func (s DeviceState) FanSpeedKnown() bool {
	return s.FanSpeed >= 0
}

// Change describes the effect of applying an Event.
type Change struct {
	// Changed is true when a surfaced field took a new value.
	Changed bool

	// ControlRelevant is true when the change concerns the fan
	// (speed or control mode) rather than the temperature.
	ControlRelevant bool
}

// Apply updates the field targeted by e and nothing else.
// Applying the same event twice leaves the state untouched the second time.
func (s *DeviceState) Apply(e Event) Change {
	switch e.Kind {
	case EventFanSpeed:
		if s.FanSpeed == e.FanSpeed {
			return Change{}
		}
		s.FanSpeed = e.FanSpeed
		return Change{Changed: true, ControlRelevant: true}

	case EventFanControlEnabled:
		if s.FanControlEnabled == e.Enabled {
			return Change{}
		}
		s.FanControlEnabled = e.Enabled
		return Change{Changed: true, ControlRelevant: true}

	case EventTemperature:
		if s.HasTemperature && s.Temperature == e.Temperature {
			return Change{}
		}
		s.Temperature = e.Temperature
		s.HasTemperature = true
		return Change{Changed: true}

	case EventPowerControlEnabled:
		s.PowerControlEnabled = e.Enabled
		return Change{}
	}

	return Change{}
}

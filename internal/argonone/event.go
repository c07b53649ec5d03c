package argonone

import (
	"github.com/godbus/dbus/v5"
)

// Notification keys carried by NotifyValue.
const (
	KeyTemperature         = "temperature"
	KeyFanSpeed            = "fan_speed"
	KeyFanControlEnabled   = "fan_control_enabled"
	KeyPowerControlEnabled = "power_control_enabled"
)

// Event names carried by NotifyEvent.
const (
	EventShutdownRequest = "shutdown_request"
	EventRebootRequest   = "reboot_request"
)

// EventKind identifies which DeviceState field a notification targets.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventTemperature
	EventFanSpeed
	EventFanControlEnabled
	EventPowerControlEnabled
)

func (k EventKind) String() string {
	switch k {
	case EventTemperature:
		return KeyTemperature
	case EventFanSpeed:
		return KeyFanSpeed
	case EventFanControlEnabled:
		return KeyFanControlEnabled
	case EventPowerControlEnabled:
		return KeyPowerControlEnabled
	default:
		return "unknown"
	}
}

// Event is a decoded NotifyValue notification.
// Only the field matching Kind is meaningful.
type Event struct {
	Kind        EventKind
	Temperature float64
	FanSpeed    int
	Enabled     bool
}

// DecodeNotification maps a (key, value) pair to an Event.
// Unknown keys and values of an unexpected type decode to EventUnknown.
func DecodeNotification(key string, value interface{}) Event {
	if v, ok := value.(dbus.Variant); ok {
		value = v.Value()
	}

	switch key {
	case KeyTemperature:
		if t, ok := toFloat(value); ok {
			return Event{Kind: EventTemperature, Temperature: t}
		}
	case KeyFanSpeed:
		if s, ok := toInt(value); ok {
			return Event{Kind: EventFanSpeed, FanSpeed: s}
		}
	case KeyFanControlEnabled:
		if b, ok := value.(bool); ok {
			return Event{Kind: EventFanControlEnabled, Enabled: b}
		}
	case KeyPowerControlEnabled:
		if b, ok := value.(bool); ok {
			return Event{Kind: EventPowerControlEnabled, Enabled: b}
		}
	}

	return Event{Kind: EventUnknown}
}

// DecodeSignal extracts the Event carried by a NotifyValue signal.
// ok is false for signals that must be ignored: no sender (synthesized
// locally rather than emitted by the daemon), a different member or path,
// or a body that is not (sv).
func DecodeSignal(sig *dbus.Signal) (e Event, ok bool) {
	if sig == nil || sig.Sender == "" {
		return Event{}, false
	}
	if sig.Name != Interface+"."+SignalNotifyValue {
		return Event{}, false
	}
	if sig.Path != "" && sig.Path != ObjectPath {
		return Event{}, false
	}
	if len(sig.Body) != 2 {
		return Event{}, false
	}
	key, isString := sig.Body[0].(string)
	if !isString {
		return Event{}, false
	}
	return DecodeNotification(key, sig.Body[1]), true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int16:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	default:
		return 0, false
	}
}

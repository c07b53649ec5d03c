package argonone

import (
	"context"
	"fmt"
)

// One-shot helpers used by the command line, which waits for every reply
// instead of going through a Client.

func GetFanSpeed(ctx context.Context, t Transport) (int, error) {
	var speed int32
	if err := t.Call(ctx, MethodGetFanSpeed, &speed); err != nil {
		return UnknownFanSpeed, &QueryError{Method: MethodGetFanSpeed, Err: err}
	}
	return int(speed), nil
}

func GetTemperature(ctx context.Context, t Transport) (float64, error) {
	var temp float64
	if err := t.Call(ctx, MethodGetTemperature, &temp); err != nil {
		return 0, &QueryError{Method: MethodGetTemperature, Err: err}
	}
	return temp, nil
}

func GetFanControlEnabled(ctx context.Context, t Transport) (bool, error) {
	var enabled bool
	if err := t.Call(ctx, MethodGetFanControlEnabled, &enabled); err != nil {
		return false, &QueryError{Method: MethodGetFanControlEnabled, Err: err}
	}
	return enabled, nil
}

func GetPowerControlEnabled(ctx context.Context, t Transport) (bool, error) {
	var enabled bool
	if err := t.Call(ctx, MethodGetPowerControlEnabled, &enabled); err != nil {
		return false, &QueryError{Method: MethodGetPowerControlEnabled, Err: err}
	}
	return enabled, nil
}

// Invoke calls a method that returns nothing and waits for the daemon to
// acknowledge it.
func Invoke(ctx context.Context, t Transport, method string, args ...interface{}) error {
	if err := t.Call(ctx, method, nil, args...); err != nil {
		return &CommandError{Method: method, Err: err}
	}
	return nil
}

// SetFanControl is the blocking counterpart of Client.SetFanControl.
func SetFanControl(ctx context.Context, t Transport, enabled bool, speed int) error {
	if speed != KeepSpeed && (speed < 0 || speed > 100) {
		return ErrSpeedOutOfRange
	}
	if err := Invoke(ctx, t, MethodSetFanControlEnabled, enabled); err != nil {
		return err
	}
	if speed == KeepSpeed {
		return nil
	}
	return Invoke(ctx, t, MethodSetFanSpeed, int32(speed))
}

// ApplyPreset is the blocking counterpart of Client.ApplyPreset.
// Toggle asks the daemon for the current mode first.
func ApplyPreset(ctx context.Context, t Transport, p Preset) error {
	switch p {
	case PresetResume:
		return SetFanControl(ctx, t, true, KeepSpeed)
	case PresetHoldOff:
		return SetFanControl(ctx, t, false, 0)
	case PresetHoldMax:
		return SetFanControl(ctx, t, false, 100)
	case PresetHoldCurrent:
		return SetFanControl(ctx, t, false, KeepSpeed)
	case PresetToggle:
		enabled, err := GetFanControlEnabled(ctx, t)
		if err != nil {
			return err
		}
		if enabled {
			return SetFanControl(ctx, t, false, 0)
		}
		return SetFanControl(ctx, t, true, KeepSpeed)
	}
	return fmt.Errorf("unknown preset %q", p)
}

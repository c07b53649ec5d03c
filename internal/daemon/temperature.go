package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/oblq/argonone/internal/exec"
)

const DefaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// SysfsTemp reads a thermal zone reporting millidegrees.
type SysfsTemp struct {
	Path string
}

func (s SysfsTemp) Temperature(_ context.Context) (float64, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("invalid temperature in %s: %w", s.Path, err)
	}
	return float64(milli) / 1000, nil
}

// SensorsTemp picks a sensor reported by gopsutil.
// An empty Key selects the first sensor with a cpu-like name.
type SensorsTemp struct {
	Key string
}

func (s SensorsTemp) Temperature(ctx context.Context) (float64, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	// partial readings come back together with a warnings error
	if len(temps) == 0 {
		if err == nil {
			err = errors.New("no temperature sensors found")
		}
		return 0, err
	}

	for _, temp := range temps {
		if s.Key != "" && temp.SensorKey == s.Key {
			return temp.Temperature, nil
		}
		if s.Key == "" && containsAny(temp.SensorKey, []string{"cpu", "soc", "core"}) {
			return temp.Temperature, nil
		}
	}
	return 0, fmt.Errorf("no sensor matching %q", s.Key)
}

func containsAny(str string, substrings []string) bool {
	for _, substr := range substrings {
		if strings.Contains(str, substr) {
			return true
		}
	}
	return false
}

// FirstOf returns the reading of the first source that succeeds.
type FirstOf []TempSource

func (sources FirstOf) Temperature(ctx context.Context) (float64, error) {
	var errs []error
	for _, source := range sources {
		temp, err := source.Temperature(ctx)
		if err == nil {
			return temp, nil
		}
		errs = append(errs, err)
	}
	return 0, fmt.Errorf("unable to read temperature: %w", errors.Join(errs...))
}

// NewTempSource reads thermal_zone0, falling back to the hwmon sensors.
// A configured temp_cmd takes precedence over both.
func NewTempSource(config *FanControlConfig) TempSource {
	if config.TempCmd != "" {
		return CommandTemp{Cmd: config.TempCmd}
	}
	return FirstOf{SysfsTemp{Path: DefaultThermalZone}, SensorsTemp{Key: config.SensorKey}}
}

// CommandTemp runs a command printing a temperature, such as
// `vcgencmd measure_temp` ("temp=51.2'C") or `cat` on a sensor file.
type CommandTemp struct {
	Cmd string
}

func (c CommandTemp) Temperature(ctx context.Context) (float64, error) {
	out, err := exec.Run(ctx, c.Cmd)
	if err != nil {
		return 0, err
	}
	if out == "" {
		return 0, fmt.Errorf("'temp_cmd' returned an empty string: `%s`", c.Cmd)
	}
	return parseTemperature(out)
}

func parseTemperature(out string) (float64, error) {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "temp=")
	out = strings.TrimSuffix(out, "'C")
	out = strings.TrimSuffix(out, "°C")
	out = strings.Trim(out, " .")
	return strconv.ParseFloat(out, 64)
}

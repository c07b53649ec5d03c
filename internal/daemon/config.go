package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigLocations are searched in order when no explicit path is given.
var ConfigLocations = []string{
	"/etc/argonone.yaml",
	"$HOME/.config/argonone.yaml",
}

var ErrNoConfig = errors.New("no configuration file found")

type Config struct {
	FanControl  FanControlConfig  `yaml:"fan_control"`
	PowerButton PowerButtonConfig `yaml:"power_button"`
}

type FanControlConfig struct {
	Enabled bool `yaml:"enabled"`

	// PollIntervalSec is the time between temperature checks, in seconds.
	PollIntervalSec float64 `yaml:"poll_interval_sec"`

	// HysteresisSec is how long a lower speed must be requested
	// before the fan actually slows down, in seconds.
	HysteresisSec float64 `yaml:"hysteresis_sec"`

	// SpeedLUT maps temperatures to fan speeds.
	// The first entry must be `default`, e.g.:
	//
	//	speed_lut:
	//	  - default: 0
	//	  - 55: 10
	//	  - 60: 55
	//	  - 65: 100
	SpeedLUT []LUTEntry `yaml:"speed_lut"`

	// TempCmd is a command printing the temperature,
	// takes precedence over the thermal zone and the sensors.
	TempCmd string `yaml:"temp_cmd"`

	// SensorKey selects the hwmon sensor used when the thermal zone
	// is not readable, e.g. `cpu_thermal`.
	SensorKey string `yaml:"sensor_key"`
}

type PowerButtonConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RebootCmd   string `yaml:"reboot_cmd"`
	ShutdownCmd string `yaml:"shutdown_cmd"`
}

// LUTEntry is a single `temperature: speed` pair.
// Default is set for the `default: speed` entry.
type LUTEntry struct {
	Default   bool
	Threshold float64
	Speed     float64
}

func (e *LUTEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: LUT entries must consist of a single temp:speed pair", value.Line)
	}

	key, val := value.Content[0], value.Content[1]

	speed, err := strconv.ParseFloat(val.Value, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid speed %q", val.Line, val.Value)
	}
	e.Speed = speed

	if key.Value == "default" {
		e.Default = true
		return nil
	}

	if e.Threshold, err = strconv.ParseFloat(key.Value, 64); err != nil {
		return fmt.Errorf("line %d: invalid temperature %q", key.Line, key.Value)
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		FanControl: FanControlConfig{
			Enabled:         true,
			PollIntervalSec: 10,
			HysteresisSec:   30,
		},
		PowerButton: PowerButtonConfig{
			Enabled:     true,
			RebootCmd:   "sudo reboot",
			ShutdownCmd: "sudo shutdown -h now",
		},
	}
}

// ParseConfig decodes data over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	if config.FanControl.PollIntervalSec <= 0 {
		return nil, fmt.Errorf("poll_interval_sec must be positive, got %v", config.FanControl.PollIntervalSec)
	}
	if config.FanControl.HysteresisSec < 0 {
		return nil, fmt.Errorf("hysteresis_sec must not be negative, got %v", config.FanControl.HysteresisSec)
	}
	if _, err := FromLUT(config.FanControl.SpeedLUT); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig reads path or, when path is empty, the first existing
// file among ConfigLocations. It returns the path actually used.
func LoadConfig(path string) (*Config, string, error) {
	if path == "" {
		for _, location := range ConfigLocations {
			candidate := os.ExpandEnv(location)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil, "", ErrNoConfig
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, path, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return config, path, nil
}

func (c *FanControlConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec * float64(time.Second))
}

func (c *FanControlConfig) Hysteresis() time.Duration {
	return time.Duration(c.HysteresisSec * float64(time.Second))
}

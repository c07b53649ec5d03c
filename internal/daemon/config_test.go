package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testConfig = `
fan_control:
  enabled: true
  poll_interval_sec: 5
  speed_lut:
    - default: 0
    - 55: 10
    - 60.5: 55
    - 65: 100
power_button:
  enabled: false
  shutdown_cmd: "systemctl poweroff"
`

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	require.True(t, config.FanControl.Enabled)
	require.Equal(t, 5*time.Second, config.FanControl.PollInterval())
	require.Equal(t, 30*time.Second, config.FanControl.Hysteresis())
	require.Equal(t, []LUTEntry{
		{Default: true, Speed: 0},
		{Threshold: 55, Speed: 10},
		{Threshold: 60.5, Speed: 55},
		{Threshold: 65, Speed: 100},
	}, config.FanControl.SpeedLUT)

	require.False(t, config.PowerButton.Enabled)
	require.Equal(t, "sudo reboot", config.PowerButton.RebootCmd)
	require.Equal(t, "systemctl poweroff", config.PowerButton.ShutdownCmd)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "no lut", yaml: "fan_control:\n  enabled: true\n"},
		{name: "pair entry", yaml: "fan_control:\n  speed_lut:\n    - default: 0\n      55: 10\n"},
		{name: "bad speed", yaml: "fan_control:\n  speed_lut:\n    - default: fast\n"},
		{name: "bad threshold", yaml: "fan_control:\n  speed_lut:\n    - default: 0\n    - hot: 100\n"},
		{name: "no default", yaml: "fan_control:\n  speed_lut:\n    - 50: 0\n"},
		{name: "zero interval", yaml: "fan_control:\n  poll_interval_sec: 0\n  speed_lut:\n    - default: 0\n"},
		{name: "negative hysteresis", yaml: "fan_control:\n  hysteresis_sec: -1\n  speed_lut:\n    - default: 0\n"},
		{name: "scalar entry", yaml: "fan_control:\n  speed_lut:\n    - 10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")
	found := filepath.Join(dir, "argonone.yaml")
	require.NoError(t, os.WriteFile(found, []byte(testConfig), 0644))

	saved := ConfigLocations
	t.Cleanup(func() { ConfigLocations = saved })

	ConfigLocations = []string{missing}
	_, _, err := LoadConfig("")
	require.ErrorIs(t, err, ErrNoConfig)

	t.Setenv("ARGONONE_TEST_DIR", dir)
	ConfigLocations = []string{missing, "$ARGONONE_TEST_DIR/argonone.yaml"}
	config, path, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, found, path)
	require.Len(t, config.FanControl.SpeedLUT, 4)

	_, path, err = LoadConfig(missing)
	require.Error(t, err)
	require.Equal(t, missing, path)
}

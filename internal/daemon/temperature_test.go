package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSysfsTemp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte("51234\n"), 0644))

	temp, err := SysfsTemp{Path: path}.Temperature(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 51.234, temp, 1e-9)

	require.NoError(t, os.WriteFile(path, []byte("n/a"), 0644))
	_, err = SysfsTemp{Path: path}.Temperature(context.Background())
	require.Error(t, err)

	_, err = SysfsTemp{Path: filepath.Join(t.TempDir(), "missing")}.Temperature(context.Background())
	require.Error(t, err)
}

func TestFirstOf(t *testing.T) {
	broken := &fakeTemps{err: errors.New("broken")}

	temp, err := FirstOf{broken, &fakeTemps{temp: 48}}.Temperature(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(48), temp)

	_, err = FirstOf{broken, broken}.Temperature(context.Background())
	require.ErrorContains(t, err, "broken")
}

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "temp=51.2'C", want: 51.2},
		{in: "48.5°C\n", want: 48.5},
		{in: " 60. ", want: 60},
		{in: "hot", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTemperature(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCommandTemp(t *testing.T) {
	_, err := CommandTemp{Cmd: "echo temp=47.8'C"}.Temperature(context.Background())
	require.Error(t, err, "unterminated quote")

	temp, err := CommandTemp{Cmd: `echo "temp=47.8'C"`}.Temperature(context.Background())
	require.NoError(t, err)
	require.Equal(t, 47.8, temp)

	_, err = CommandTemp{Cmd: "true"}.Temperature(context.Background())
	require.ErrorContains(t, err, "empty string")
}

func TestNewTempSource(t *testing.T) {
	require.Equal(t, CommandTemp{Cmd: "vcgencmd measure_temp"},
		NewTempSource(&FanControlConfig{TempCmd: "vcgencmd measure_temp"}))
	require.Equal(t, FirstOf{SysfsTemp{Path: DefaultThermalZone}, SensorsTemp{Key: "cpu_thermal"}},
		NewTempSource(&FanControlConfig{SensorKey: "cpu_thermal"}))
}

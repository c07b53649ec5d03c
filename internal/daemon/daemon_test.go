package daemon

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oblq/argonone/internal/argonone"
)

type notification struct {
	key   string
	value interface{}
}

type fakeNotifier struct {
	mutex  sync.Mutex
	values []notification
	events []string
}

func (n *fakeNotifier) NotifyValue(key string, value interface{}) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.values = append(n.values, notification{key, value})
}

func (n *fakeNotifier) NotifyEvent(name string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.events = append(n.events, name)
}

func (n *fakeNotifier) keys() []string {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	keys := make([]string, 0, len(n.values))
	for _, v := range n.values {
		keys = append(keys, v.key)
	}
	return keys
}

type fakeTemps struct {
	temp float64
	err  error
}

func (f *fakeTemps) Temperature(context.Context) (float64, error) {
	return f.temp, f.err
}

func testDaemon(t *testing.T, hysteresis float64) (*Daemon, *MemoryFan, *fakeTemps, *fakeNotifier) {
	t.Helper()

	config := DefaultConfig()
	config.FanControl.HysteresisSec = hysteresis
	config.FanControl.SpeedLUT = []LUTEntry{
		{Default: true, Speed: 0},
		{Threshold: 55, Speed: 10},
		{Threshold: 60, Speed: 55},
		{Threshold: 65, Speed: 100},
	}

	fan := &MemoryFan{}
	temps := &fakeTemps{temp: 40}
	d, err := New(config, fan, temps, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	d.SetNotifier(notifier)
	return d, fan, temps, notifier
}

func TestNew_StopsFan(t *testing.T) {
	d, fan, _, _ := testDaemon(t, 0)
	require.Equal(t, []int{0}, fan.Speeds())
	require.Equal(t, 0, d.FanSpeed())
	require.True(t, d.FanControlEnabled())
	require.True(t, d.PowerControlEnabled())
}

func TestNew_InvalidLUT(t *testing.T) {
	_, err := New(DefaultConfig(), &MemoryFan{}, &fakeTemps{}, nil)
	require.Error(t, err)
}

func TestDaemon_SetFanSpeed(t *testing.T) {
	d, fan, _, notifier := testDaemon(t, 0)

	tests := []struct {
		in, want int
	}{
		{in: 40, want: 40},
		{in: 150, want: 100},
		{in: -3, want: 0},
	}
	for _, tt := range tests {
		require.NoError(t, d.SetFanSpeed(tt.in))
		require.Equal(t, tt.want, d.FanSpeed())
	}
	require.Equal(t, []int{0, 40, 100, 0}, fan.Speeds())
	require.Equal(t, notification{argonone.KeyFanSpeed, int32(0)}, notifier.values[len(notifier.values)-1])

	fan.Err = errors.New("i2c nack")
	require.Error(t, d.SetFanSpeed(70))
	require.Equal(t, 0, d.FanSpeed())
	require.Len(t, notifier.values, 3)
}

func TestDaemon_Poll(t *testing.T) {
	d, fan, temps, notifier := testDaemon(t, 0)

	temps.temp = 61.5
	d.Poll(context.Background())
	require.Equal(t, 61.5, d.Temperature())
	require.Equal(t, 55, d.FanSpeed())
	require.Equal(t, []string{argonone.KeyTemperature, argonone.KeyFanSpeed}, notifier.keys())

	// same speed, no write
	d.Poll(context.Background())
	require.Equal(t, []int{0, 55}, fan.Speeds())

	temps.temp = 30
	d.Poll(context.Background())
	require.Equal(t, 0, d.FanSpeed())
}

func TestDaemon_PollControlDisabled(t *testing.T) {
	d, fan, temps, notifier := testDaemon(t, 0)
	d.SetFanControlEnabled(false)

	temps.temp = 70
	d.Poll(context.Background())
	require.Equal(t, 0, d.FanSpeed())
	require.Equal(t, []int{0}, fan.Speeds())
	require.Equal(t, []string{argonone.KeyFanControlEnabled, argonone.KeyTemperature}, notifier.keys())
}

// holdingNotifier holds the fan at full speed as soon as a temperature
// is published, like a client reacting between a Poll decision and its write.
type holdingNotifier struct {
	fakeNotifier
	d    *Daemon
	held bool
	err  error
}

func (n *holdingNotifier) NotifyValue(key string, value interface{}) {
	n.fakeNotifier.NotifyValue(key, value)
	if key == argonone.KeyTemperature && !n.held {
		n.held = true
		n.d.SetFanControlEnabled(false)
		n.err = n.d.SetFanSpeed(100)
	}
}

func TestDaemon_PollKeepsHeldSpeed(t *testing.T) {
	d, fan, temps, _ := testDaemon(t, 0)
	notifier := &holdingNotifier{d: d}
	d.SetNotifier(notifier)

	temps.temp = 57
	d.Poll(context.Background())

	require.True(t, notifier.held)
	require.NoError(t, notifier.err)
	require.False(t, d.FanControlEnabled())
	require.Equal(t, 100, d.FanSpeed())
	require.Equal(t, []int{0, 100}, fan.Speeds())
}

func TestDaemon_PollTemperatureError(t *testing.T) {
	d, _, temps, notifier := testDaemon(t, 0)
	temps.err = errors.New("no sensor")

	d.Poll(context.Background())
	require.Empty(t, notifier.values)
	require.Equal(t, float64(0), d.Temperature())
}

func TestDaemon_Hysteresis(t *testing.T) {
	d, _, temps, _ := testDaemon(t, 30)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	temps.temp = 70
	d.Poll(context.Background())
	require.Equal(t, 100, d.FanSpeed())

	tests := []struct {
		name    string
		advance time.Duration
		temp    float64
		want    int
	}{
		{name: "slow-down requested", advance: 0, temp: 50, want: 100},
		{name: "still within hysteresis", advance: 20 * time.Second, temp: 58, want: 100},
		{name: "hysteresis elapsed", advance: 10 * time.Second, temp: 58, want: 10},
		{name: "speed-up is immediate", advance: time.Second, temp: 62, want: 55},
		{name: "new slow-down waits again", advance: time.Second, temp: 40, want: 55},
		{name: "back up cancels the slow-down", advance: 29 * time.Second, temp: 61, want: 55},
		{name: "slow-down timer restarted", advance: 5 * time.Second, temp: 40, want: 55},
		{name: "restarted timer elapsed", advance: 30 * time.Second, temp: 40, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock = clock.Add(tt.advance)
			temps.temp = tt.temp
			d.Poll(context.Background())
			require.Equal(t, tt.want, d.FanSpeed())
		})
	}
}

func TestDaemon_SetPowerControlEnabled(t *testing.T) {
	d, _, _, notifier := testDaemon(t, 0)
	d.SetPowerControlEnabled(false)
	require.False(t, d.PowerControlEnabled())
	require.Equal(t, []notification{{argonone.KeyPowerControlEnabled, false}}, notifier.values)
}

func TestDaemon_HandlePulse(t *testing.T) {
	d, _, _, notifier := testDaemon(t, 0)
	var commands []string
	d.runCommand = func(_ context.Context, cmdString string) (string, error) {
		commands = append(commands, cmdString)
		return "", nil
	}

	d.HandlePulse(context.Background(), 20*time.Millisecond)
	d.HandlePulse(context.Background(), 40*time.Millisecond)
	d.HandlePulse(context.Background(), 5*time.Millisecond)
	d.HandlePulse(context.Background(), 600*time.Millisecond)
	require.Equal(t, []string{argonone.EventRebootRequest, argonone.EventShutdownRequest}, notifier.events)
	require.Equal(t, []string{"sudo reboot", "sudo shutdown -h now"}, commands)

	d.SetPowerControlEnabled(false)
	d.HandlePulse(context.Background(), 35*time.Millisecond)
	require.Len(t, notifier.events, 3)
	require.Len(t, commands, 2)
}

func TestDaemon_Run(t *testing.T) {
	d, _, temps, notifier := testDaemon(t, 0)
	d.pollInterval = time.Millisecond
	temps.temp = 56

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.FanSpeed() == 10 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Contains(t, notifier.keys(), argonone.KeyTemperature)
}

package daemon

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/oblq/argonone/internal/argonone"
	"github.com/oblq/argonone/internal/exec"
)

// Daemon owns the fan, the temperature readings and the power button policy.
type Daemon struct {
	logger *log.Logger
	fan    Fan
	temps  TempSource
	lut    *StepFunction

	pollInterval time.Duration
	hysteresis   time.Duration
	rebootCmd    string
	shutdownCmd  string

	// replaceable in tests
	runCommand func(ctx context.Context, cmdString string) (string, error)
	now        func() time.Time

	mutex               sync.Mutex
	notifier            Notifier
	fanSpeed            int
	temperature         float64
	fanControlEnabled   bool
	powerControlEnabled bool

	// slowdownSince is when the LUT first asked for a lower speed,
	// zero when no reduction is pending.
	slowdownSince time.Time
}

func New(config *Config, fan Fan, temps TempSource, logger *log.Logger) (*Daemon, error) {
	lut, err := FromLUT(config.FanControl.SpeedLUT)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	d := &Daemon{
		logger:              logger,
		fan:                 fan,
		temps:               temps,
		lut:                 lut,
		pollInterval:        config.FanControl.PollInterval(),
		hysteresis:          config.FanControl.Hysteresis(),
		rebootCmd:           config.PowerButton.RebootCmd,
		shutdownCmd:         config.PowerButton.ShutdownCmd,
		runCommand:          exec.Run,
		now:                 time.Now,
		notifier:            nopNotifier{},
		fanControlEnabled:   config.FanControl.Enabled,
		powerControlEnabled: config.PowerButton.Enabled,
	}

	// start from a known state
	if err = d.SetFanSpeed(0); err != nil {
		d.logger.Printf("unable to stop the fan: %v", err)
	}

	return d, nil
}

// SetNotifier routes future notifications to n.
func (d *Daemon) SetNotifier(n Notifier) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if n == nil {
		n = nopNotifier{}
	}
	d.notifier = n
}

func (d *Daemon) FanSpeed() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.fanSpeed
}

// SetFanSpeed clamps speed to [0, 100] and writes it to the fan.
// The stored speed only changes when the write succeeds.
func (d *Daemon) SetFanSpeed(speed int) error {
	_, err := d.setFanSpeed(speed, false)
	return err
}

// setFanSpeed writes speed to the fan. An automatic write is skipped,
// reporting false, when fan control has been disabled in the meantime.
func (d *Daemon) setFanSpeed(speed int, auto bool) (bool, error) {
	if speed < 0 {
		speed = 0
	} else if speed > 100 {
		speed = 100
	}

	d.mutex.Lock()
	if auto && !d.fanControlEnabled {
		d.mutex.Unlock()
		return false, nil
	}
	if err := d.fan.SetSpeed(speed); err != nil {
		d.mutex.Unlock()
		return false, err
	}
	d.fanSpeed = speed
	notifier := d.notifier
	d.mutex.Unlock()

	notifier.NotifyValue(argonone.KeyFanSpeed, int32(speed))
	return true, nil
}

func (d *Daemon) Temperature() float64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.temperature
}

func (d *Daemon) FanControlEnabled() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.fanControlEnabled
}

func (d *Daemon) SetFanControlEnabled(enabled bool) {
	d.mutex.Lock()
	d.fanControlEnabled = enabled
	d.slowdownSince = time.Time{}
	notifier := d.notifier
	d.mutex.Unlock()

	if enabled {
		d.logger.Println("fan control enabled")
	} else {
		d.logger.Println("fan control disabled")
	}
	notifier.NotifyValue(argonone.KeyFanControlEnabled, enabled)
}

func (d *Daemon) PowerControlEnabled() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.powerControlEnabled
}

func (d *Daemon) SetPowerControlEnabled(enabled bool) {
	d.mutex.Lock()
	d.powerControlEnabled = enabled
	notifier := d.notifier
	d.mutex.Unlock()

	if enabled {
		d.logger.Println("power button control enabled")
	} else {
		d.logger.Println("power button control disabled")
	}
	notifier.NotifyValue(argonone.KeyPowerControlEnabled, enabled)
}

// Run polls the temperature until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Printf("fan control and temperature monitoring starting, every %v", d.pollInterval)
	defer d.logger.Println("fan control and temperature monitoring exiting")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		d.Poll(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads the temperature once, notifies it and, when fan control
// is enabled, moves the fan towards the LUT speed.
func (d *Daemon) Poll(ctx context.Context) {
	temp, err := d.temps.Temperature(ctx)
	if err != nil {
		d.logger.Printf("error reading temperature: %v", err)
		return
	}

	d.mutex.Lock()
	d.temperature = temp
	notifier := d.notifier
	target := d.lut.Speed(temp)
	apply := d.fanControlEnabled && d.shouldApply(target)
	d.mutex.Unlock()

	notifier.NotifyValue(argonone.KeyTemperature, temp)

	if !apply {
		return
	}
	applied, err := d.setFanSpeed(target, true)
	if err != nil {
		d.logger.Printf("error setting fan speed: %v", err)
		return
	}
	if applied {
		d.logger.Printf("adjusted fan speed to %d%% for temperature %.1f°C", target, temp)
	}
}

// shouldApply reports whether target must be written now.
// Speed-ups apply at once, slow-downs once they have been requested
// for the whole hysteresis period. Must be called with the mutex held.
func (d *Daemon) shouldApply(target int) bool {
	switch {
	case target > d.fanSpeed:
		d.slowdownSince = time.Time{}
		return true
	case target == d.fanSpeed:
		d.slowdownSince = time.Time{}
		return false
	}

	now := d.now()
	if d.slowdownSince.IsZero() {
		d.slowdownSince = now
	}
	if now.Sub(d.slowdownSince) < d.hysteresis {
		return false
	}
	d.slowdownSince = time.Time{}
	return true
}

// HandlePulse reacts to a pulse on the power button line.
func (d *Daemon) HandlePulse(ctx context.Context, pulse time.Duration) {
	if pulse >= maxPulse {
		d.logger.Printf("power button monitor giving up on a %v pulse", pulse)
		return
	}

	action := ClassifyPulse(pulse)
	if action == PowerNone {
		return
	}

	d.mutex.Lock()
	notifier := d.notifier
	enabled := d.powerControlEnabled
	d.mutex.Unlock()

	cmdString := d.rebootCmd
	event := argonone.EventRebootRequest
	if action == PowerShutdown {
		cmdString = d.shutdownCmd
		event = argonone.EventShutdownRequest
	}

	d.logger.Printf("power button %s detected", action)
	notifier.NotifyEvent(event)

	if !enabled {
		return
	}
	d.logger.Printf("issuing %s command: %s", action, cmdString)
	if _, err := d.runCommand(ctx, cmdString); err != nil {
		d.logger.Printf("%s command failed: %v", action, err)
	}
}

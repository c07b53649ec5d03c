package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/godbus/dbus/v5"
	"gopkg.in/yaml.v3"

	"github.com/oblq/argonone/internal/argonone"
	"github.com/oblq/argonone/internal/bridge"
	"github.com/oblq/argonone/internal/daemon"
	"github.com/oblq/argonone/internal/prefs"
)

// replaceable in tests
var (
	stdout     io.Writer = os.Stdout
	dialDaemon           = func() (argonone.Transport, error) {
		return argonone.Dial(globalOptions.Session, logger)
	}
)

func init() {
	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"watch", "Follow the fan state",
			"Print the panel view on every change, optionally mirroring the state on MQTT and HTTP.",
			&watchCommand{}},
		{"daemon", "Run the fan and power button daemon",
			"Control the case fan from the temperature and serve the D-Bus interface.",
			&daemonCommand{}},
		{"get", "Query a value",
			"Print fan-speed, temperature, fan-control or power-control.",
			&getCommand{}},
		{"set-fan-speed", "Hold the fan at a speed",
			"Disable automatic control and set the fan speed (0-100).",
			&setFanSpeedCommand{}},
		{"resume", "Resume automatic fan control", "", &presetCommand{preset: argonone.PresetResume}},
		{"hold-off", "Stop the fan until resumed", "", &presetCommand{preset: argonone.PresetHoldOff}},
		{"hold-max", "Run the fan at full speed until resumed", "", &presetCommand{preset: argonone.PresetHoldMax}},
		{"hold-current", "Keep the current fan speed until resumed", "", &presetCommand{preset: argonone.PresetHoldCurrent}},
		{"toggle", "Switch between hold-off and resume", "", &presetCommand{preset: argonone.PresetToggle}},
		{"power-control", "Enable or disable the power button",
			"When disabled, button presses are only notified.",
			&powerControlCommand{}},
		{"shutdown-daemon", "Stop the daemon", "", &shutdownCommand{}},
		{"prefs", "Show or change the applet preferences", "", &prefsCommand{}},
	}

	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(err)
		}
	}
}

// withDaemon runs fn with a connection and a context bounded by --query-timeout.
func withDaemon(fn func(ctx context.Context, t argonone.Transport) error) error {
	t, err := dialDaemon()
	if err != nil {
		return err
	}
	defer t.Close()

	ctx, cancel := context.WithTimeout(context.Background(), globalOptions.QueryTimeout)
	defer cancel()

	return fn(ctx, t)
}

func parseOnOff(value string) (bool, error) {
	switch value {
	case "on", "yes", "true", "enabled":
		return true, nil
	case "off", "no", "false", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q, expected on or off", value)
}

func formatEnabled(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

type watchCommand struct {
	Prefs        string `long:"prefs" description:"Preferences file (default: $XDG_CONFIG_HOME/argonone/applet.yaml)"`
	MQTTBroker   string `long:"mqtt-broker" description:"MQTT broker, host[:port] or tcp://host:port"`
	MQTTClientID string `long:"mqtt-client-id" default:"argonone-applet" description:"MQTT client id"`
	MQTTUser     string `long:"mqtt-user" description:"MQTT username"`
	MQTTPassword string `long:"mqtt-password" description:"MQTT password"`
	MQTTPrefix   string `long:"mqtt-prefix" default:"argonone" description:"MQTT topic prefix"`
	HTTP         string `long:"http" description:"Serve the state and the fan presets on this address, e.g. :8080"`

	PrefsInterval time.Duration `long:"prefs-interval" default:"2s" description:"Time between checks of the preferences file"`
}

func (c *watchCommand) Execute(_ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	applet, err := NewApplet(ctx, AppletOptions{
		Session:       globalOptions.Session,
		QueryTimeout:  globalOptions.QueryTimeout,
		PrefsPath:     c.Prefs,
		PrefsInterval: c.PrefsInterval,
		MQTT: bridge.MQTTConfig{
			Broker:   c.MQTTBroker,
			ClientID: c.MQTTClientID,
			Username: c.MQTTUser,
			Password: c.MQTTPassword,
			Prefix:   c.MQTTPrefix,
		},
		HTTPAddr: c.HTTP,
		Output:   stdout,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer applet.Close()

	if err = applet.Run(ctx); errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type daemonCommand struct {
	Config   string `long:"config" description:"Config file (default: /etc/argonone.yaml or $HOME/.config/argonone.yaml)"`
	DryRun   bool   `long:"dry-run" description:"Do not touch the hardware: in-memory fan, no power button"`
	I2CBus   string `long:"i2c-bus" description:"I2C device of the fan (default: /dev/i2c-1)"`
	GPIOChip string `long:"gpio-chip" default:"gpiochip0" description:"GPIO chip of the power button"`
}

func (c *daemonCommand) Execute(_ []string) error {
	dlog := log.New(os.Stderr, "argononed: ", log.LstdFlags)

	config, path, err := daemon.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	dlog.Printf("loaded config file from %s", path)

	var fan daemon.Fan = &daemon.MemoryFan{}
	if !c.DryRun {
		bus := c.I2CBus
		if bus == "" {
			bus = daemon.DefaultI2CBus
		}
		i2cFan, err := daemon.OpenI2CFan(bus)
		if err != nil {
			return err
		}
		fan = i2cFan
	}
	defer fan.Close()

	d, err := daemon.New(config, fan, daemon.NewTempSource(&config.FanControl), dlog)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var conn *dbus.Conn
	if globalOptions.Session {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.ConnectSystemBus()
	}
	if err != nil {
		return &argonone.ConnectionError{Err: err}
	}
	defer conn.Close()

	if err = daemon.NewService(d, cancel).Export(conn); err != nil {
		return err
	}
	dlog.Printf("serving %s", argonone.BusName)

	if !c.DryRun {
		button, err := daemon.OpenPowerButton(c.GPIOChip, func(pulse time.Duration) {
			d.HandlePulse(ctx, pulse)
		})
		if err != nil {
			dlog.Printf("power button monitoring disabled: %v", err)
		} else {
			defer button.Close()
		}
	}

	if err = d.Run(ctx); errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type getCommand struct {
	Args struct {
		Value string `positional-arg-name:"fan-speed|temperature|fan-control|power-control"`
	} `positional-args:"yes" required:"yes"`
}

func (c *getCommand) Execute(_ []string) error {
	return withDaemon(func(ctx context.Context, t argonone.Transport) error {
		var out string
		switch c.Args.Value {
		case "fan-speed":
			speed, err := argonone.GetFanSpeed(ctx, t)
			if err != nil {
				return err
			}
			out = strconv.Itoa(speed)
		case "temperature":
			temp, err := argonone.GetTemperature(ctx, t)
			if err != nil {
				return err
			}
			out = strconv.FormatFloat(temp, 'f', 1, 64)
		case "fan-control":
			enabled, err := argonone.GetFanControlEnabled(ctx, t)
			if err != nil {
				return err
			}
			out = formatEnabled(enabled)
		case "power-control":
			enabled, err := argonone.GetPowerControlEnabled(ctx, t)
			if err != nil {
				return err
			}
			out = formatEnabled(enabled)
		default:
			return fmt.Errorf("unknown value %q", c.Args.Value)
		}
		fmt.Fprintln(stdout, out)
		return nil
	})
}

type setFanSpeedCommand struct {
	Args struct {
		Speed int `positional-arg-name:"speed"`
	} `positional-args:"yes" required:"yes"`
}

func (c *setFanSpeedCommand) Execute(_ []string) error {
	if c.Args.Speed < 0 || c.Args.Speed > 100 {
		return argonone.ErrSpeedOutOfRange
	}
	return withDaemon(func(ctx context.Context, t argonone.Transport) error {
		return argonone.SetFanControl(ctx, t, false, c.Args.Speed)
	})
}

type presetCommand struct {
	preset argonone.Preset
}

func (c *presetCommand) Execute(_ []string) error {
	return withDaemon(func(ctx context.Context, t argonone.Transport) error {
		return argonone.ApplyPreset(ctx, t, c.preset)
	})
}

type powerControlCommand struct {
	Args struct {
		State string `positional-arg-name:"on|off"`
	} `positional-args:"yes" required:"yes"`
}

func (c *powerControlCommand) Execute(_ []string) error {
	enabled, err := parseOnOff(c.Args.State)
	if err != nil {
		return err
	}
	return withDaemon(func(ctx context.Context, t argonone.Transport) error {
		return argonone.Invoke(ctx, t, argonone.MethodSetPowerControlEnabled, enabled)
	})
}

type shutdownCommand struct{}

func (c *shutdownCommand) Execute(_ []string) error {
	return withDaemon(func(ctx context.Context, t argonone.Transport) error {
		return argonone.Invoke(ctx, t, argonone.MethodShutdown)
	})
}

type prefsCommand struct {
	Prefs              string `long:"prefs" description:"Preferences file (default: $XDG_CONFIG_HOME/argonone/applet.yaml)"`
	ShowLabel          string `long:"show-label" choice:"on" choice:"off" description:"Show the status next to the icon"`
	IncludeTemperature string `long:"include-temperature" choice:"on" choice:"off" description:"Include the temperature in the status"`
}

func (c *prefsCommand) Execute(_ []string) error {
	path := c.Prefs
	if path == "" {
		path = prefs.DefaultPath()
	}
	store := prefs.NewStore(path)

	p, err := store.Load()
	if err != nil {
		return err
	}

	if c.ShowLabel != "" || c.IncludeTemperature != "" {
		if c.ShowLabel != "" {
			if p.ShowLabel, err = parseOnOff(c.ShowLabel); err != nil {
				return err
			}
		}
		if c.IncludeTemperature != "" {
			if p.IncludeTemperature, err = parseOnOff(c.IncludeTemperature); err != nil {
				return err
			}
		}
		if err = store.Save(p); err != nil {
			return err
		}
	}

	out, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

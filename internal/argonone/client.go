package argonone

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// KeepSpeed asks SetFanControl to leave the current fan speed untouched.
const KeepSpeed = -1

// DefaultQueryTimeout bounds each startup query.
const DefaultQueryTimeout = 5 * time.Second

// StateObserver is called after the state changed.
// controlRelevant is set when fan speed or control mode changed,
// configRelevant when display preferences must be re-applied.
type StateObserver func(controlRelevant, configRelevant bool)

// Options configures a Client.
type Options struct {
	// QueryTimeout bounds each startup query, DefaultQueryTimeout when zero.
	QueryTimeout time.Duration

	// OnStateChanged is invoked from the dispatch loop. It may be nil.
	OnStateChanged StateObserver

	Logger *log.Logger
}

// Client keeps a DeviceState in sync with the daemon.
//
// The state is written only by New (startup queries) and by the goroutine
// running Run; State may be called from anywhere.
type Client struct {
	transport Transport
	observer  StateObserver
	timeout   time.Duration
	logger    *log.Logger

	mutex sync.RWMutex
	state DeviceState
}

// New seeds the state with the three startup queries and signals observers
// once. A failing query is logged and leaves its field at the default.
func New(ctx context.Context, transport Transport, opts Options) *Client {
	c := &Client{
		transport: transport,
		observer:  opts.OnStateChanged,
		timeout:   opts.QueryTimeout,
		logger:    opts.Logger,
		state:     NewDeviceState(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultQueryTimeout
	}
	if c.logger == nil {
		c.logger = log.Default()
	}

	c.seed(ctx)
	c.notify(true, true)

	return c
}

func (c *Client) seed(ctx context.Context) {
	var speed int32
	if err := c.query(ctx, MethodGetFanSpeed, &speed); err != nil {
		c.logger.Println(err)
	} else {
		c.apply(Event{Kind: EventFanSpeed, FanSpeed: int(speed)})
	}

	var enabled bool
	if err := c.query(ctx, MethodGetFanControlEnabled, &enabled); err != nil {
		c.logger.Println(err)
	} else {
		c.apply(Event{Kind: EventFanControlEnabled, Enabled: enabled})
	}

	var temp float64
	if err := c.query(ctx, MethodGetTemperature, &temp); err != nil {
		c.logger.Println(err)
	} else {
		c.apply(Event{Kind: EventTemperature, Temperature: temp})
	}
}

func (c *Client) query(ctx context.Context, method string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.transport.Call(ctx, method, out); err != nil {
		return &QueryError{Method: method, Err: err}
	}
	return nil
}

// State returns a snapshot of the current state.
func (c *Client) State() DeviceState {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.state
}

// Run dispatches notifications until ctx is done or the transport
// stops delivering signals. It must run on a single goroutine.
func (c *Client) Run(ctx context.Context) error {
	signals := c.transport.Signals()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return &ConnectionError{Err: errSignalsClosed}
			}
			c.HandleSignal(sig)
		}
	}
}

// HandleSignal applies a single NotifyValue signal.
// Anything that does not decode to a known event is ignored.
func (c *Client) HandleSignal(sig *dbus.Signal) {
	e, ok := DecodeSignal(sig)
	if !ok || e.Kind == EventUnknown {
		return
	}

	if change := c.apply(e); change.Changed {
		c.notify(change.ControlRelevant, false)
	}
}

func (c *Client) apply(e Event) Change {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state.Apply(e)
}

func (c *Client) notify(controlRelevant, configRelevant bool) {
	if c.observer != nil {
		c.observer(controlRelevant, configRelevant)
	}
}

// SetFanControl enables or disables automatic fan control and, unless
// speed is KeepSpeed, sets the fan speed afterwards.
// The effect is observed through the next notifications; delivery
// failures are logged, only invalid input is returned.
func (c *Client) SetFanControl(enabled bool, speed int) error {
	if speed != KeepSpeed && (speed < 0 || speed > 100) {
		return ErrSpeedOutOfRange
	}

	c.send(MethodSetFanControlEnabled, enabled)
	if speed != KeepSpeed {
		c.send(MethodSetFanSpeed, int32(speed))
	}
	return nil
}

// Resume hands the fan back to the daemon's temperature curve.
func (c *Client) Resume() {
	c.SetFanControl(true, KeepSpeed)
}

// HoldOff stops the fan and keeps it stopped.
func (c *Client) HoldOff() {
	c.SetFanControl(false, 0)
}

// HoldMax runs the fan at full speed until resumed.
func (c *Client) HoldMax() {
	c.SetFanControl(false, 100)
}

// HoldCurrent freezes the fan at whatever speed it runs now.
func (c *Client) HoldCurrent() {
	c.SetFanControl(false, KeepSpeed)
}

// Toggle holds the fan off when automatic control is on, resumes otherwise.
func (c *Client) Toggle() {
	if c.State().FanControlEnabled {
		c.HoldOff()
	} else {
		c.Resume()
	}
}

// SetPowerControl lets the daemon act on power button presses, or not.
func (c *Client) SetPowerControl(enabled bool) {
	c.send(MethodSetPowerControlEnabled, enabled)
}

// ShutdownDaemon asks the daemon to stop.
func (c *Client) ShutdownDaemon() {
	c.send(MethodShutdown)
}

func (c *Client) send(method string, args ...interface{}) {
	if err := c.transport.Send(method, args...); err != nil {
		c.logger.Println((&CommandError{Method: method, Err: err}).Error())
	}
}

package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oblq/argonone/internal/argonone"
	"github.com/oblq/argonone/internal/bridge"
	"github.com/oblq/argonone/internal/prefs"
	"github.com/oblq/argonone/internal/view"
)

const defaultPrefsInterval = 2 * time.Second

type AppletOptions struct {
	Session      bool
	QueryTimeout time.Duration

	// PrefsPath defaults to prefs.DefaultPath().
	PrefsPath string
	// PrefsInterval is the time between checks of the preferences file.
	PrefsInterval time.Duration

	// MQTT is optional, the bridge is disabled when Broker is empty.
	MQTT bridge.MQTTConfig
	// HTTPAddr is optional, the HTTP API is disabled when empty.
	HTTPAddr string

	Output io.Writer
	Logger *log.Logger
}

// Applet mirrors the daemon state on the panel view and the bridges.
type Applet struct {
	opts   AppletOptions
	logger *log.Logger

	transport argonone.Transport
	client    *argonone.Client
	store     *prefs.Store

	// guards prefs and renderer, the observer runs on the client
	// dispatch loop and on the preferences ticker
	mutex    sync.Mutex
	prefs    prefs.Preferences
	renderer *view.Renderer

	publisher  *bridge.Publisher
	mqttClient mqtt.Client
	server     *http.Server
}

// NewApplet connects to the daemon. A connection failure is fatal.
func NewApplet(ctx context.Context, opts AppletOptions) (*Applet, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	transport, err := argonone.Dial(opts.Session, opts.Logger)
	if err != nil {
		return nil, err
	}

	a, err := newApplet(ctx, transport, opts)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return a, nil
}

func newApplet(ctx context.Context, transport argonone.Transport, opts AppletOptions) (*Applet, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.PrefsPath == "" {
		opts.PrefsPath = prefs.DefaultPath()
	}
	if opts.PrefsInterval <= 0 {
		opts.PrefsInterval = defaultPrefsInterval
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}

	a := &Applet{
		opts:      opts,
		logger:    opts.Logger,
		transport: transport,
		store:     prefs.NewStore(opts.PrefsPath),
		renderer:  view.NewRenderer(opts.Output),
	}

	var err error
	if a.prefs, err = a.store.Load(); err != nil {
		a.logger.Printf("error loading preferences, using defaults: %v", err)
		a.prefs = prefs.Default()
	}

	// the first refresh happens below, once a.client is set
	a.client = argonone.New(ctx, transport, argonone.Options{
		QueryTimeout:   opts.QueryTimeout,
		OnStateChanged: a.onStateChanged,
		Logger:         a.logger,
	})
	a.onStateChanged(true, true)

	if opts.MQTT.Broker != "" {
		if err = a.connectMQTT(); err != nil {
			return nil, err
		}
	}

	if opts.HTTPAddr != "" {
		a.server = &http.Server{
			Addr:    opts.HTTPAddr,
			Handler: bridge.NewRouter(a.client, a.logger),
		}
		go func() {
			a.logger.Printf("serving HTTP on %s", opts.HTTPAddr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Printf("HTTP server error: %v", err)
			}
		}()
	}

	return a, nil
}

func (a *Applet) connectMQTT() error {
	a.publisher = bridge.NewPublisher(a.opts.MQTT.Prefix, a.client, a.logger)

	clientOptions := a.opts.MQTT.ClientOptions(a.logger).
		SetOnConnectHandler(func(client mqtt.Client) {
			a.logger.Println("MQTT connected")
			a.publisher.Subscribe(client)
			a.publisher.Publish(client)
		})

	a.mqttClient = mqtt.NewClient(clientOptions)
	if token := a.mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (a *Applet) onStateChanged(controlRelevant, configRelevant bool) {
	// invoked by argonone.New before it returns
	if a.client == nil {
		return
	}

	state := a.client.State()

	a.mutex.Lock()
	a.renderer.Update(state, a.prefs, controlRelevant, configRelevant)
	a.mutex.Unlock()

	if a.mqttClient != nil && a.mqttClient.IsConnectionOpen() {
		a.publisher.Publish(a.mqttClient)
	}
}

// Run dispatches notifications and watches the preferences file
// until ctx is done or the connection to the daemon is lost.
func (a *Applet) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.watchPrefs(ctx)

	return a.client.Run(ctx)
}

// watchPrefs is the hot-reload loop for the preferences file.
func (a *Applet) watchPrefs(ctx context.Context) {
	ticker := time.NewTicker(a.opts.PrefsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.checkPrefs()
		}
	}
}

func (a *Applet) checkPrefs() {
	if !a.store.Changed() {
		return
	}

	p, err := a.store.Load()
	if err != nil {
		a.logger.Printf("error reloading preferences: %v", err)
		return
	}

	a.mutex.Lock()
	a.prefs = p
	a.mutex.Unlock()

	a.logger.Println("preferences updated")
	a.onStateChanged(false, true)
}

// Close stops the bridges and drops the bus connection.
func (a *Applet) Close() error {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Printf("HTTP shutdown error: %v", err)
		}
	}
	if a.mqttClient != nil {
		a.mqttClient.Disconnect(250)
	}
	return a.transport.Close()
}

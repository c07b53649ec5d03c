package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/oblq/argonone/internal/argonone"
	"github.com/oblq/argonone/internal/view"
)

type fakeBus struct {
	replies map[string]interface{}
	signals chan *dbus.Signal

	mutex  sync.Mutex
	calls  []string
	sent   []string
	closed bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		replies: map[string]interface{}{
			argonone.MethodGetFanSpeed:          int32(42),
			argonone.MethodGetFanControlEnabled: true,
			argonone.MethodGetTemperature:       51.2,
		},
		signals: make(chan *dbus.Signal, 8),
	}
}

func (b *fakeBus) Call(_ context.Context, method string, out interface{}, args ...interface{}) error {
	b.mutex.Lock()
	b.calls = append(b.calls, fmt.Sprintf("%s %v", method, args))
	b.mutex.Unlock()

	v, ok := b.replies[method]
	if !ok {
		return errors.New("org.freedesktop.DBus.Error.UnknownMethod")
	}
	if out != nil {
		reflect.ValueOf(out).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func (b *fakeBus) Send(method string, _ ...interface{}) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.sent = append(b.sent, method)
	return nil
}

func (b *fakeBus) Signals() <-chan *dbus.Signal { return b.signals }

func (b *fakeBus) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBus) notify(key string, value interface{}) {
	b.signals <- &dbus.Signal{
		Sender: ":1.7",
		Path:   argonone.ObjectPath,
		Name:   argonone.Interface + "." + argonone.SignalNotifyValue,
		Body:   []interface{}{key, dbus.MakeVariant(value)},
	}
}

type syncBuffer struct {
	mutex sync.Mutex
	buf   bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return strings.Split(strings.TrimSuffix(b.buf.String(), "\n"), "\n")
}

func (a *Applet) frame() view.Frame {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.renderer.Frame()
}

func testApplet(t *testing.T, bus *fakeBus) (*Applet, *syncBuffer, string) {
	t.Helper()

	prefsPath := filepath.Join(t.TempDir(), "applet.yaml")
	out := &syncBuffer{}
	a, err := newApplet(context.Background(), bus, AppletOptions{
		QueryTimeout:  50 * time.Millisecond,
		PrefsPath:     prefsPath,
		PrefsInterval: 5 * time.Millisecond,
		Output:        out,
		Logger:        log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)
	return a, out, prefsPath
}

func TestApplet_Startup(t *testing.T) {
	a, out, _ := testApplet(t, newFakeBus())

	require.Equal(t, []string{"[argonone-fan-medium]  42%"}, out.lines())
	require.Equal(t, argonone.DeviceState{
		FanSpeed:            42,
		FanControlEnabled:   true,
		Temperature:         51.2,
		HasTemperature:      true,
		PowerControlEnabled: true,
	}, a.client.State())
}

func TestApplet_StartupWithoutDaemon(t *testing.T) {
	bus := newFakeBus()
	bus.replies = map[string]interface{}{}
	_, out, _ := testApplet(t, bus)

	require.Equal(t, []string{"[argonone-fan]  -- "}, out.lines())
}

func TestApplet_Run(t *testing.T) {
	bus := newFakeBus()
	a, out, prefsPath := testApplet(t, bus)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	bus.notify(argonone.KeyFanSpeed, int32(80))
	require.Eventually(t, func() bool {
		return a.frame() == view.Frame{Icon: view.IconHigh, Label: " 80%", LabelVisible: true, Tooltip: view.DefaultTooltip}
	}, time.Second, time.Millisecond)

	// duplicates and hidden temperatures do not redraw
	bus.notify(argonone.KeyFanSpeed, int32(80))
	bus.notify(argonone.KeyTemperature, 55.0)
	bus.notify(argonone.KeyFanControlEnabled, false)
	require.Eventually(t, func() bool { return a.frame().Icon == view.IconPaused }, time.Second, time.Millisecond)
	require.Len(t, out.lines(), 3)

	require.NoError(t, os.WriteFile(prefsPath, []byte("show_label: false\ninclude_temperature: true\n"), 0644))
	require.Eventually(t, func() bool {
		return a.frame() == view.Frame{Icon: view.IconPaused, Label: " 80%", Tooltip: " 80% / 55.0C"}
	}, time.Second, time.Millisecond)

	close(bus.signals)
	var connErr *argonone.ConnectionError
	require.ErrorAs(t, <-done, &connErr)

	require.NoError(t, a.Close())
	require.True(t, bus.closed)
}

func TestApplet_RunCanceled(t *testing.T) {
	a, _, _ := testApplet(t, newFakeBus())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, a.Run(ctx), context.Canceled)
}

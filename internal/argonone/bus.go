package argonone

import (
	"context"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Monitor signals from the daemon:
//  dbus-monitor --system type=signal,sender=net.clusterhack.ArgonOne
//
// Query it by hand:
//  dbus-send --system --print-reply --dest=net.clusterhack.ArgonOne /net/clusterhack/ArgonOne net.clusterhack.ArgonOne.GetFanSpeed
//  dbus-send --system --print-reply --dest=net.clusterhack.ArgonOne /net/clusterhack/ArgonOne net.clusterhack.ArgonOne.SetFanSpeed int32:100

const (
	BusName    = "net.clusterhack.ArgonOne"
	ObjectPath = dbus.ObjectPath("/net/clusterhack/ArgonOne")
	Interface  = "net.clusterhack.ArgonOne"

	SignalNotifyValue = "NotifyValue"
	SignalNotifyEvent = "NotifyEvent"
)

// Method names exposed by the daemon on Interface.
const (
	MethodGetFanSpeed            = "GetFanSpeed"
	MethodSetFanSpeed            = "SetFanSpeed"
	MethodGetTemperature         = "GetTemperature"
	MethodGetFanControlEnabled   = "GetFanControlEnabled"
	MethodSetFanControlEnabled   = "SetFanControlEnabled"
	MethodGetPowerControlEnabled = "GetPowerControlEnabled"
	MethodSetPowerControlEnabled = "SetPowerControlEnabled"
	MethodShutdown               = "Shutdown"
)

// signalBuffer is the capacity of the signal channel. Notifications that
// arrive while the startup queries are in flight queue up here.
const signalBuffer = 64

// Transport is the part of a bus connection the Client depends on.
type Transport interface {
	// Call invokes method and waits for the reply. When out is not nil
	// the single return value is stored in it.
	Call(ctx context.Context, method string, out interface{}, args ...interface{}) error

	// Send calls method without waiting for the reply.
	// Only local failures (closed connection, marshalling) are returned,
	// errors replied by the daemon are reported asynchronously.
	Send(method string, args ...interface{}) error

	// Signals delivers the signals received on the subscription.
	// The channel is closed when the connection goes away.
	Signals() <-chan *dbus.Signal

	Close() error
}

// BusTransport is a Transport backed by a godbus connection.
type BusTransport struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	replies chan *dbus.Call
	logger  *log.Logger

	done      chan struct{}
	closeOnce sync.Once
	drained   sync.WaitGroup
}

// Dial connects to the system bus (or the session bus when session is true)
// and subscribes to the daemon's NotifyValue signal.
func Dial(session bool, logger *log.Logger) (*BusTransport, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	if session {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.ConnectSystemBus()
	}
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	t, err := NewBusTransport(conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// NewBusTransport wraps an established connection.
// The match rule is installed before returning, so no notification
// emitted after this call can be missed.
func NewBusTransport(conn *dbus.Conn, logger *log.Logger) (*BusTransport, error) {
	if logger == nil {
		logger = log.Default()
	}

	err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchMember(SignalNotifyValue),
	)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	t := &BusTransport{
		conn:    conn,
		obj:     conn.Object(BusName, ObjectPath),
		signals: make(chan *dbus.Signal, signalBuffer),
		replies: make(chan *dbus.Call, signalBuffer),
		logger:  logger,
		done:    make(chan struct{}),
	}
	conn.Signal(t.signals)

	t.drained.Add(1)
	go t.drainReplies()

	return t, nil
}

func (t *BusTransport) Call(ctx context.Context, method string, out interface{}, args ...interface{}) error {
	call := t.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
	if out == nil {
		return call.Err
	}
	return call.Store(out)
}

func (t *BusTransport) Send(method string, args ...interface{}) error {
	call := t.obj.Go(Interface+"."+method, 0, t.replies, args...)
	if call.Err != nil {
		return call.Err
	}
	return nil
}

func (t *BusTransport) Signals() <-chan *dbus.Signal {
	return t.signals
}

// Close disconnects and stops the reply logger. It is safe to call twice.
func (t *BusTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.conn.RemoveSignal(t.signals)
		err = t.conn.Close()
		close(t.done)
		t.drained.Wait()
	})
	return err
}

// drainReplies logs async command failures: the daemon confirms
// successful commands through NotifyValue, so replies carry no data.
// replies is never closed, godbus may still finish calls on it after Close.
func (t *BusTransport) drainReplies() {
	defer t.drained.Done()
	for {
		select {
		case call := <-t.replies:
			if call.Err != nil {
				t.logger.Println((&CommandError{Method: trimInterface(call.Method), Err: call.Err}).Error())
			}
		case <-t.done:
			return
		}
	}
}

func trimInterface(method string) string {
	if len(method) > len(Interface)+1 && method[:len(Interface)] == Interface {
		return method[len(Interface)+1:]
	}
	return method
}

package daemon

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/oblq/argonone/internal/argonone"
)

const introspectXML = `
<node>
	<interface name="` + argonone.Interface + `">
		<method name="GetFanSpeed">
			<arg direction="out" type="i"/>
		</method>
		<method name="SetFanSpeed">
			<arg name="speed" direction="in" type="i"/>
		</method>
		<method name="GetTemperature">
			<arg direction="out" type="d"/>
		</method>
		<method name="GetFanControlEnabled">
			<arg direction="out" type="b"/>
		</method>
		<method name="SetFanControlEnabled">
			<arg name="enable" direction="in" type="b"/>
		</method>
		<method name="GetPowerControlEnabled">
			<arg direction="out" type="b"/>
		</method>
		<method name="SetPowerControlEnabled">
			<arg name="enable" direction="in" type="b"/>
		</method>
		<method name="Shutdown"/>
		<signal name="NotifyValue">
			<arg name="name" type="s"/>
			<arg name="value" type="v"/>
		</signal>
		<signal name="NotifyEvent">
			<arg name="name" type="s"/>
		</signal>
	</interface>` + introspect.IntrospectDataString + `</node> `

// Service is the daemon's D-Bus object. Every exported method
// returning *dbus.Error is callable on argonone.Interface.
type Service struct {
	daemon *Daemon
	stop   func()
}

func NewService(d *Daemon, stop func()) *Service {
	return &Service{daemon: d, stop: stop}
}

func (s *Service) GetFanSpeed() (int32, *dbus.Error) {
	return int32(s.daemon.FanSpeed()), nil
}

func (s *Service) SetFanSpeed(speed int32) *dbus.Error {
	if err := s.daemon.SetFanSpeed(int(speed)); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (s *Service) GetTemperature() (float64, *dbus.Error) {
	return s.daemon.Temperature(), nil
}

func (s *Service) GetFanControlEnabled() (bool, *dbus.Error) {
	return s.daemon.FanControlEnabled(), nil
}

func (s *Service) SetFanControlEnabled(enable bool) *dbus.Error {
	s.daemon.SetFanControlEnabled(enable)
	return nil
}

func (s *Service) GetPowerControlEnabled() (bool, *dbus.Error) {
	return s.daemon.PowerControlEnabled(), nil
}

func (s *Service) SetPowerControlEnabled(enable bool) *dbus.Error {
	s.daemon.SetPowerControlEnabled(enable)
	return nil
}

// Shutdown stops the daemon.
func (s *Service) Shutdown() *dbus.Error {
	s.daemon.logger.Println("shutdown requested over D-Bus")
	if s.stop != nil {
		s.stop()
	}
	return nil
}

// Export publishes s on conn, claims the well-known name and
// routes the daemon notifications to D-Bus signals.
func (s *Service) Export(conn *dbus.Conn) error {
	if err := conn.Export(s, argonone.ObjectPath, argonone.Interface); err != nil {
		return fmt.Errorf("error exporting %s: %w", argonone.Interface, err)
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), argonone.ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("error exporting introspection: %w", err)
	}

	reply, err := conn.RequestName(argonone.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("error requesting %s: %w", argonone.BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", argonone.BusName)
	}

	s.daemon.SetNotifier(&signalEmitter{conn: conn, logger: s.daemon.logger})
	return nil
}

// signalEmitter turns notifications into NotifyValue/NotifyEvent signals.
type signalEmitter struct {
	conn   *dbus.Conn
	logger *log.Logger
}

func (e *signalEmitter) NotifyValue(key string, value interface{}) {
	err := e.conn.Emit(argonone.ObjectPath, argonone.Interface+"."+argonone.SignalNotifyValue,
		key, dbus.MakeVariant(value))
	if err != nil {
		e.logger.Printf("error emitting %s: %v", key, err)
	}
}

func (e *signalEmitter) NotifyEvent(name string) {
	err := e.conn.Emit(argonone.ObjectPath, argonone.Interface+"."+argonone.SignalNotifyEvent, name)
	if err != nil {
		e.logger.Printf("error emitting %s: %v", name, err)
	}
}

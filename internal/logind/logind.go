// Package logind talks to systemd-logind on the system bus. It reports
// resume from suspend and answers the lid position on machines without
// /proc/acpi/button/lid.
package logind

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/Guliveer/acs/internal/models"
)

const (
	busName       = "org.freedesktop.login1"
	objectPath    = dbus.ObjectPath("/org/freedesktop/login1")
	managerIface  = "org.freedesktop.login1.Manager"
	sleepSignal   = managerIface + ".PrepareForSleep"
	lidProperty   = managerIface + ".LidClosed"
	watchedMember = "PrepareForSleep"
)

// Monitor listens for PrepareForSleep and exposes a wake channel.
type Monitor struct {
	conn   *dbus.Conn
	done   chan struct{}
	wake   chan struct{}
	logger *zap.Logger
}

// Connect opens the system bus and starts listening.
func Connect(logger *zap.Logger) (*Monitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}
	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(managerIface),
		dbus.WithMatchMember(watchedMember),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", watchedMember, err)
	}

	m := newMonitor(conn, logger)
	go m.listen()
	return m, nil
}

func newMonitor(conn *dbus.Conn, logger *zap.Logger) *Monitor {
	return &Monitor{
		conn:   conn,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Wake receives a value each time the system resumes. Wakes that arrive
// while one is pending are merged.
func (m *Monitor) Wake() <-chan struct{} {
	return m.wake
}

// Close stops the listener. The shared bus connection stays open.
func (m *Monitor) Close() {
	close(m.done)
}

// Lid reads logind's LidClosed property. It has the shape of
// sysfs.WithLidFallback.
func (m *Monitor) Lid() (models.LidState, error) {
	v, err := m.conn.Object(busName, objectPath).GetProperty(lidProperty)
	if err != nil {
		return models.LidUnknown, fmt.Errorf("reading %s: %w", lidProperty, err)
	}
	return lidFromVariant(v)
}

func lidFromVariant(v dbus.Variant) (models.LidState, error) {
	closed, ok := v.Value().(bool)
	if !ok {
		return models.LidUnknown, fmt.Errorf("%s has type %s, want bool", lidProperty, v.Signature())
	}
	if closed {
		return models.LidClosed, nil
	}
	return models.LidOpen, nil
}

func (m *Monitor) listen() {
	ch := make(chan *dbus.Signal, 16)
	m.conn.Signal(ch)
	defer m.conn.RemoveSignal(ch)

	for {
		select {
		case sig := <-ch:
			m.handle(sig)
		case <-m.done:
			return
		}
	}
}

func (m *Monitor) handle(sig *dbus.Signal) {
	if sig == nil || sig.Name != sleepSignal || len(sig.Body) < 1 {
		return
	}
	active, ok := sig.Body[0].(bool)
	if !ok {
		return
	}
	if active {
		m.logger.Info("System going to sleep")
		return
	}
	m.logger.Info("System woke up")
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

package suspend

import (
	"fmt"
	"io"
	"os"

	"github.com/godbus/dbus/v5"
)

const (
	login1Name   = "org.freedesktop.login1"
	login1Path   = dbus.ObjectPath("/org/freedesktop/login1")
	managerIface = "org.freedesktop.login1.Manager"
	sleepSignal  = managerIface + ".PrepareForSleep"
)

// Bus is the slice of the logind D-Bus surface the watcher consumes.
type Bus interface {
	// SleepSignals subscribes to PrepareForSleep. Each delivery carries true
	// when the host is about to sleep and false on resume. The channel closes
	// when the bus connection closes.
	SleepSignals() (<-chan bool, error)

	// Inhibit takes a delay lock on sleep. Closing the returned handle
	// releases the lock and lets the host proceed.
	Inhibit(who, why string) (io.Closer, error)

	Close() error
}

// loginBus implements Bus over the system D-Bus connection.
type loginBus struct {
	conn *dbus.Conn
	sigs chan *dbus.Signal
	out  chan bool
}

// NewSystemBus connects to the system bus and verifies logind is present.
func NewSystemBus() (Bus, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == login1Name {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("%s not found on system bus", login1Name)
	}
	return &loginBus{conn: conn}, nil
}

func (b *loginBus) SleepSignals() (<-chan bool, error) {
	call := b.conn.BusObject().Call(
		"org.freedesktop.DBus.AddMatch", 0,
		"type='signal',interface='"+managerIface+"',member='PrepareForSleep',path='"+string(login1Path)+"'",
	)
	if call.Err != nil {
		return nil, fmt.Errorf("add signal match: %w", call.Err)
	}

	b.sigs = make(chan *dbus.Signal, 16)
	b.conn.Signal(b.sigs)
	b.out = make(chan bool, 16)
	go b.filter()
	return b.out, nil
}

// filter forwards PrepareForSleep bodies and drops everything else. It ends
// when Close terminates the signal channel.
func (b *loginBus) filter() {
	defer close(b.out)
	for sig := range b.sigs {
		if sig.Name != sleepSignal || len(sig.Body) < 1 {
			continue
		}
		asleep, ok := sig.Body[0].(bool)
		if !ok {
			continue
		}
		b.out <- asleep
	}
}

// Inhibit takes a logind delay lock on sleep. The returned file descriptor
// holds the lock until closed.
func (b *loginBus) Inhibit(who, why string) (io.Closer, error) {
	var fd dbus.UnixFD
	obj := b.conn.Object(login1Name, login1Path)
	if err := obj.Call(managerIface+".Inhibit", 0, "sleep", who, why, "delay").Store(&fd); err != nil {
		return nil, fmt.Errorf("take sleep inhibitor: %w", err)
	}
	return os.NewFile(uintptr(fd), "login1-inhibit"), nil
}

func (b *loginBus) Close() error {
	return b.conn.Close()
}

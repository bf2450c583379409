package ps

import "log"

// Observer receives state machine diagnostics: committed transitions and
// refused operations. Notifications are advisory and delivered synchronously
// while the controller lock is held, so implementations must be quick and
// must not call back into the Controller.
type Observer interface {
	// StateChanged is called after every committed transition.
	StateChanged(from, to State)

	// RequestRejected is called when the state machine refuses an operation
	// or confirmation: op names what was attempted, current the state that
	// refused it, and reason the error returned to the caller.
	RequestRejected(op Op, current State, reason error)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) StateChanged(from, to State)                  {}
func (NopObserver) RequestRejected(op Op, current State, reason error) {}

// MultiObserver fans notifications out to each member in order.
type MultiObserver []Observer

func (m MultiObserver) StateChanged(from, to State) {
	for _, o := range m {
		o.StateChanged(from, to)
	}
}

func (m MultiObserver) RequestRejected(op Op, current State, reason error) {
	for _, o := range m {
		o.RequestRejected(op, current, reason)
	}
}

// LogObserver writes diagnostics to a standard logger in the driver's
// historical format.
type LogObserver struct {
	Radio  string
	Logger *log.Logger
}

func (l LogObserver) StateChanged(from, to State) {
	l.logger().Printf("radio %s: PS state changed %s => %s", l.Radio, from, to)
}

func (l LogObserver) RequestRejected(op Op, current State, reason error) {
	l.logger().Printf("radio %s: PS %s rejected in %s state: %v", l.Radio, op, current, reason)
}

func (l LogObserver) logger() *log.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return log.Default()
}

package ps

import (
	"context"
	"sync"
)

// Transport carries power-save requests to the radio firmware. Send reports
// only whether the request was dispatched; the firmware's answer arrives
// later as a confirmation frame on a separate path.
type Transport interface {
	SendPSRequest(ctx context.Context, enable bool) error
}

// Controller owns the power-save negotiation state for one radio link.
//
// Operations and confirmation handling may run on different goroutines (the
// control path and the firmware event path); a single exclusive lock covers
// each operation including its transport send, so transport implementations
// are expected to be bounded, typically by the caller's context deadline.
type Controller struct {
	mu        sync.Mutex
	state     State
	transport Transport
	observer  Observer
}

// NewController creates a controller in StateNone. A nil observer is
// replaced with NopObserver.
func NewController(transport Transport, observer Observer) *Controller {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Controller{
		transport: transport,
		observer:  observer,
	}
}

// State returns the current negotiation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enable requests power save. Legal only in StateNone; on success the
// controller moves to StateEnableRequestSent and waits for a sleep confirm.
// Any other state refuses with a TransitionError and changes nothing. A
// transport failure is returned verbatim with the state unchanged; there is
// no optimistic transition.
func (c *Controller) Enable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateNone {
		return c.reject(OpEnable)
	}
	if err := c.transport.SendPSRequest(ctx, true); err != nil {
		return err
	}
	c.transition(StateEnableRequestSent)
	return nil
}

// Disable requests leaving power save. Legal only in StateEnabled; on
// success the controller moves to StateDisableRequestSent and waits for a
// wakeup confirm. Failure semantics match Enable.
func (c *Controller) Disable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateEnabled {
		return c.reject(OpDisable)
	}
	if err := c.transport.SendPSRequest(ctx, false); err != nil {
		return err
	}
	c.transition(StateDisableRequestSent)
	return nil
}

// ReconfigureUAPSD re-asserts power save so the firmware picks up updated
// UAPSD parameters: a disable request followed by an enable request. Outside
// StateEnabled it is a silent no-op (no error, no sends). A failure of the
// disable send aborts the sequence and the enable request is never issued.
//
// The stored state is deliberately left untouched: the sequence is a
// pass-through to firmware, and any confirmations it provokes fall through
// the ordinary HandleConfirm table.
func (c *Controller) ReconfigureUAPSD(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateEnabled {
		return nil
	}
	if err := c.transport.SendPSRequest(ctx, false); err != nil {
		return err
	}
	return c.transport.SendPSRequest(ctx, true)
}

// HandleConfirm processes an inbound confirmation frame from the firmware.
// A confirm matching the pending request commits the transition. A
// recognized confirm that does not match the current state is ignored, which
// tolerates duplicate and stray confirmations without corrupting the state
// machine. An unrecognized confirm type, or a frame too short to carry one,
// is an error and never changes state.
func (c *Controller) HandleConfirm(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfm, err := DecodeConfirmType(frame)
	if err != nil {
		c.observer.RequestRejected(OpConfirm, c.state, err)
		return err
	}

	switch cfm {
	case ConfirmSleep:
		if c.state == StateEnableRequestSent {
			c.transition(StateEnabled)
		}
	case ConfirmWakeup:
		if c.state == StateDisableRequestSent {
			c.transition(StateNone)
		}
	default:
		cerr := &ConfirmError{Raw: uint16(cfm), Current: c.state}
		c.observer.RequestRejected(OpConfirm, c.state, cerr)
		return cerr
	}
	return nil
}

// transition commits a state change and notifies the observer. Callers hold
// c.mu.
func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	c.observer.StateChanged(from, to)
}

// reject refuses the operation in the current state. Callers hold c.mu.
func (c *Controller) reject(op Op) error {
	err := &TransitionError{Op: op, Current: c.state}
	c.observer.RequestRejected(op, c.state, err)
	return err
}

package command

import (
	"github.com/radio-control/psc/internal/ps"
)

// stateObserver publishes one radio's state machine diagnostics as telemetry
// events. It fires while the controller lock is held, so it only hands the
// event to the hub, which buffers and drops rather than blocking.
type stateObserver struct {
	orch    *Orchestrator
	radioID string
}

// Compile-time assertion that stateObserver implements ps.Observer
var _ ps.Observer = (*stateObserver)(nil)

// ObserverFor returns a state machine observer that publishes ps_state_change
// and ps_reject events for one radio. Compose it with other observers via
// ps.MultiObserver when wiring a controller.
func (o *Orchestrator) ObserverFor(radioID string) ps.Observer {
	return &stateObserver{orch: o, radioID: radioID}
}

// StateChanged publishes every committed transition, whether an operator
// request or a firmware confirm drove it.
func (s *stateObserver) StateChanged(from, to ps.State) {
	s.orch.publishStateChangeEvent(s.radioID, from, to)
}

// RequestRejected publishes refused operator requests. Confirm-path failures
// are skipped here; HandleConfirm reports those as ps_confirm_fault with the
// frame context.
func (s *stateObserver) RequestRejected(op ps.Op, current ps.State, reason error) {
	if op == ps.OpConfirm {
		return
	}
	s.orch.publishRejectEvent(s.radioID, op, current, reason)
}

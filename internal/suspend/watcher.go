package suspend

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/radio-control/psc/internal/config"
	"github.com/radio-control/psc/internal/ps"
)

// Watcher couples radio power save to host sleep transitions.
type Watcher struct {
	bus    Bus
	power  PowerControl
	radios RadioLister
	who    string
	why    string

	mu        sync.Mutex
	lock      io.Closer // held delay inhibitor; nil while the host sleeps
	suspended []string  // radios disabled for the current sleep cycle
	stopped   bool

	done chan struct{}
}

// NewWatcher creates a watcher over the given bus. Commands are dispatched
// through power, which applies its own per-action timeouts.
func NewWatcher(bus Bus, power PowerControl, radios RadioLister, cfg *config.SuspendConfig) *Watcher {
	return &Watcher{
		bus:    bus,
		power:  power,
		radios: radios,
		who:    cfg.Who,
		why:    cfg.Why,
		done:   make(chan struct{}),
	}
}

// Start takes the delay lock and begins watching for sleep transitions.
func (w *Watcher) Start() error {
	if err := w.takeLock(); err != nil {
		return err
	}
	signals, err := w.bus.SleepSignals()
	if err != nil {
		w.releaseLock()
		return err
	}
	go w.run(signals)
	return nil
}

// Stop closes the bus, waits for the signal goroutine and drops the lock.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	_ = w.bus.Close()
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		log.Printf("Suspend watcher did not stop within timeout")
	}
	w.releaseLock()
}

func (w *Watcher) run(signals <-chan bool) {
	defer close(w.done)
	for asleep := range signals {
		if asleep {
			w.onSleep()
		} else {
			w.onResume()
		}
	}
}

// onSleep disables power save on every radio currently enabled and remembers
// the set, then releases the delay lock so the host can proceed.
func (w *Watcher) onSleep() {
	var suspended []string
	for _, snap := range w.radios.List() {
		if snap.PSState != ps.StateEnabled {
			continue
		}
		suspended = append(suspended, snap.ID)
		if err := w.power.DisablePS(context.Background(), snap.ID); err != nil {
			log.Printf("Failed to disable power save on %s before sleep: %v", snap.ID, err)
		}
	}

	w.mu.Lock()
	w.suspended = suspended
	w.mu.Unlock()

	log.Printf("Host preparing for sleep, disabled power save on %d radio(s)", len(suspended))
	w.releaseLock()
}

// onResume re-takes the delay lock for the next sleep cycle and re-enables
// exactly the radios that were disabled on the way down. A resume without a
// preceding sleep keeps the held lock and enables nothing.
func (w *Watcher) onResume() {
	w.mu.Lock()
	held := w.lock != nil
	suspended := w.suspended
	w.suspended = nil
	w.mu.Unlock()

	if !held {
		if err := w.takeLock(); err != nil {
			log.Printf("Failed to re-take sleep inhibitor after resume: %v", err)
		}
	}

	for _, radioID := range suspended {
		if err := w.power.EnablePS(context.Background(), radioID); err != nil {
			log.Printf("Failed to re-enable power save on %s after resume: %v", radioID, err)
		}
	}
	log.Printf("Host resumed, re-enabled power save on %d radio(s)", len(suspended))
}

func (w *Watcher) takeLock() error {
	lock, err := w.bus.Inhibit(w.who, w.why)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.lock = lock
	w.mu.Unlock()
	return nil
}

func (w *Watcher) releaseLock() {
	w.mu.Lock()
	lock := w.lock
	w.lock = nil
	w.mu.Unlock()
	if lock != nil {
		_ = lock.Close()
	}
}

// Package simfw implements an in-process simulated radio firmware.
//
// The simulator accepts power-save requests on a bounded queue, lets a worker
// goroutine apply a configurable processing delay, and answers each request
// with a confirmation frame the way real firmware would: sleep confirms for
// enable requests, wakeup confirms for disable requests. Scripted behaviors
// (dropped or corrupt confirmations, busy windows) exist to reproduce the
// failure modes the controller has to survive.
package simfw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/radio-control/psc/internal/fw"
	"github.com/radio-control/psc/internal/ps"
)

const (
	defaultQueueSize    = 8
	defaultConfirmDelay = 2 * time.Millisecond
	closeTimeout        = 2 * time.Second

	// corruptConfirmType is outside the firmware contract on purpose.
	corruptConfirmType = ps.ConfirmType(0x00EE)
)

// Config controls one simulated firmware instance.
type Config struct {
	RadioID string
	Model   string

	// ConfirmDelay is the simulated processing time between accepting a
	// request and emitting its confirmation.
	ConfirmDelay time.Duration

	// QueueSize bounds the request queue; further sends fail busy.
	QueueSize int

	// BusyWindow rejects new requests for this long after each accepted
	// request, imitating firmware that serializes PS commands.
	BusyWindow time.Duration

	// DropConfirms swallows every confirmation. The controller then stays
	// in its request-sent state forever, which is exactly the stuck link a
	// lost confirm produces on real hardware.
	DropConfirms bool

	// CorruptConfirms answers with an unknown confirm type instead of the
	// matching one.
	CorruptConfirms bool
}

// Firmware is a simulated radio firmware implementing fw.Device.
type Firmware struct {
	fw.DeviceBase

	cfg Config

	mu        sync.Mutex
	busyUntil time.Time
	closed    bool

	queue    chan bool // the enable flag of each accepted request
	confirms chan []byte
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates and starts a simulated firmware.
func New(cfg Config) *Firmware {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = defaultConfirmDelay
	}
	if cfg.Model == "" {
		cfg.Model = "nimbus"
	}

	f := &Firmware{
		DeviceBase: fw.DeviceBase{
			RadioID: cfg.RadioID,
			Model:   cfg.Model,
			Status:  "online",
		},
		cfg:      cfg,
		queue:    make(chan bool, cfg.QueueSize),
		confirms: make(chan []byte, cfg.QueueSize*2),
		stop:     make(chan struct{}),
	}

	f.wg.Add(1)
	go f.run()

	return f
}

// SendPSRequest queues a power-save request. It fails busy while a prior
// request's busy window is open or the queue is full, and unavailable once
// the firmware is shut down.
func (f *Firmware) SendPSRequest(ctx context.Context, enable bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("DEVICE_OFFLINE: simulated firmware stopped")
	}
	if now := time.Now(); now.Before(f.busyUntil) {
		return fmt.Errorf("FW_BUSY: busy for another %v", f.busyUntil.Sub(now).Round(time.Millisecond))
	}

	select {
	case f.queue <- enable:
		if f.cfg.BusyWindow > 0 {
			f.busyUntil = time.Now().Add(f.cfg.BusyWindow)
		}
		return nil
	default:
		return fmt.Errorf("CMD_QUEUE_FULL: %d requests pending", cap(f.queue))
	}
}

// Confirms returns the confirmation stream.
func (f *Firmware) Confirms() <-chan []byte {
	return f.confirms
}

// Close stops the worker and closes the confirmation stream. It waits for
// the worker with a bounded timeout.
func (f *Firmware) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.stop)

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(closeTimeout):
		return fmt.Errorf("simulated firmware %s: worker did not stop within %v", f.RadioID, closeTimeout)
	}

	close(f.confirms)
	return nil
}

// run is the firmware worker: it drains the request queue and emits
// confirmations after the configured delay.
func (f *Firmware) run() {
	defer f.wg.Done()

	for {
		select {
		case <-f.stop:
			return
		case enable := <-f.queue:
			select {
			case <-time.After(f.cfg.ConfirmDelay):
			case <-f.stop:
				return
			}

			if f.cfg.DropConfirms {
				continue
			}

			cfm := ps.ConfirmSleep
			if !enable {
				cfm = ps.ConfirmWakeup
			}
			if f.cfg.CorruptConfirms {
				cfm = corruptConfirmType
			}

			select {
			case f.confirms <- ps.NewConfirmFrame(cfm):
			case <-f.stop:
				return
			}
		}
	}
}

// Package fake provides a scriptable in-memory firmware device for tests.
//
// The fake records every PS request and never answers on its own:
// confirmations are injected explicitly, which keeps request/confirm
// interleavings fully under test control.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/radio-control/psc/internal/fw"
	"github.com/radio-control/psc/internal/ps"
)

// Device implements fw.Device for testing purposes.
type Device struct {
	fw.DeviceBase

	mu       sync.Mutex
	requests []bool
	confirms chan []byte
	closed   bool

	// Error simulation
	simulateErrors bool
	errorType      string
}

// NewDevice creates a new fake firmware device.
func NewDevice(radioID string) *Device {
	return &Device{
		DeviceBase: fw.DeviceBase{
			RadioID: radioID,
			Model:   "fake-radio",
			Status:  "online",
		},
		confirms: make(chan []byte, 16),
	}
}

// SendPSRequest records the request, or fails when error simulation is on.
func (d *Device) SendPSRequest(ctx context.Context, enable bool) error {
	// Check for context cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("DEVICE_OFFLINE: fake device closed")
	}
	if d.simulateErrors {
		return d.simulatedError()
	}

	d.requests = append(d.requests, enable)
	return nil
}

// Confirms returns the confirmation stream.
func (d *Device) Confirms() <-chan []byte {
	return d.confirms
}

// Close shuts the device down and closes the confirmation stream.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	close(d.confirms)
	return nil
}

// InjectConfirm queues a well-formed confirmation frame as if the firmware
// produced it.
func (d *Device) InjectConfirm(t ps.ConfirmType) {
	d.confirms <- ps.NewConfirmFrame(t)
}

// InjectRawConfirm queues an arbitrary frame (corrupt or truncated cases).
func (d *Device) InjectRawConfirm(frame []byte) {
	d.confirms <- frame
}

// Requests returns a copy of the recorded request flags in send order.
func (d *Device) Requests() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]bool, len(d.requests))
	copy(out, d.requests)
	return out
}

// SetErrorSimulation makes every subsequent send fail with the given kind
// ("BUSY", "UNAVAILABLE" or "INTERNAL").
func (d *Device) SetErrorSimulation(errorType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.simulateErrors = true
	d.errorType = errorType
}

// DisableErrorSimulation restores normal sends.
func (d *Device) DisableErrorSimulation() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.simulateErrors = false
	d.errorType = ""
}

// simulatedError returns an error whose text normalizes to the configured
// kind. Callers hold d.mu.
func (d *Device) simulatedError() error {
	switch d.errorType {
	case "BUSY":
		return fmt.Errorf("BUSY: simulated busy error")
	case "UNAVAILABLE":
		return fmt.Errorf("UNAVAILABLE: simulated unavailable error")
	case "INTERNAL":
		return fmt.Errorf("INTERNAL: simulated internal error")
	default:
		return fmt.Errorf("INTERNAL: unknown simulated error")
	}
}

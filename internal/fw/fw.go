package fw

import (
	"github.com/radio-control/psc/internal/ps"
)

// ConfirmSource delivers the firmware's asynchronous confirmation frames in
// arrival order. The channel closes when the device shuts down.
type ConfirmSource interface {
	Confirms() <-chan []byte
}

// Device is the full firmware-facing surface of one radio link: the request
// transport consumed by the PS controller plus the confirmation stream.
type Device interface {
	ps.Transport
	ConfirmSource

	// Close releases the device. Pending confirmations may be dropped.
	Close() error
}

// DeviceBase provides common identity fields for device implementations.
type DeviceBase struct {
	// RadioID identifies the radio this device belongs to
	RadioID string

	// Model identifies the radio model (selects the error mapping table)
	Model string

	// Status indicates the current device status
	Status string
}

// GetRadioID returns the radio identifier.
func (d *DeviceBase) GetRadioID() string {
	return d.RadioID
}

// GetModel returns the radio model.
func (d *DeviceBase) GetModel() string {
	return d.Model
}

// GetStatus returns the device status.
func (d *DeviceBase) GetStatus() string {
	return d.Status
}

// SetStatus updates the device status.
func (d *DeviceBase) SetStatus(status string) {
	d.Status = status
}

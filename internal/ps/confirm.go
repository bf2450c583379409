package ps

import (
	"encoding/binary"
	"fmt"
)

// ConfirmType is the 16-bit confirmation code carried in firmware confirm
// frames.
type ConfirmType uint16

// Confirm type codes and frame geometry. These are wire-compatibility
// constants fixed by the deployed firmware contract, not configuration: the
// confirm type is a little-endian uint16 at byte offset 12 of the frame.
const (
	ConfirmSleep  ConfirmType = 1
	ConfirmWakeup ConfirmType = 2

	confirmTypeOffset = 12
	confirmFrameLen   = 16
)

// String returns a display label for the confirm type.
func (t ConfirmType) String() string {
	switch t {
	case ConfirmSleep:
		return "SLEEP_CONFIRM"
	case ConfirmWakeup:
		return "WAKEUP_CONFIRM"
	default:
		return fmt.Sprintf("UNKNOWN(%#x)", uint16(t))
	}
}

// DecodeConfirmType extracts the confirmation type from an inbound frame.
// Only the type field is consumed; everything else in the frame is opaque to
// the controller.
func DecodeConfirmType(frame []byte) (ConfirmType, error) {
	if len(frame) < confirmTypeOffset+2 {
		return 0, fmt.Errorf("confirm frame too short (%d bytes): %w", len(frame), ErrFrameTruncated)
	}
	return ConfirmType(binary.LittleEndian.Uint16(frame[confirmTypeOffset:])), nil
}

// NewConfirmFrame builds a minimal confirmation frame carrying t. Fields
// outside the confirm type are zero; real firmware fills them with values the
// controller does not consume. Used by the simulated firmware and tests.
func NewConfirmFrame(t ConfirmType) []byte {
	frame := make([]byte, confirmFrameLen)
	binary.LittleEndian.PutUint16(frame[confirmTypeOffset:], uint16(t))
	return frame
}

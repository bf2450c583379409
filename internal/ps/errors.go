package ps

import (
	"errors"
	"fmt"
)

// Normalized power-save error codes. Structured errors below unwrap to these
// so callers can classify with errors.Is.
var (
	ErrInvalidTransition = errors.New("INVALID_TRANSITION")
	ErrUnknownConfirm    = errors.New("UNKNOWN_CONFIRM")
	ErrFrameTruncated    = errors.New("FRAME_TRUNCATED")
)

// Op identifies a controller operation in diagnostics and audit records.
type Op string

const (
	OpEnable      Op = "enable"
	OpDisable     Op = "disable"
	OpReconfigure Op = "reconfigureUapsd"
	OpConfirm     Op = "confirm"
)

// TransitionError reports an operation attempted in a state that does not
// permit it. The controller state is unchanged and nothing was sent to the
// firmware.
type TransitionError struct {
	Op      Op
	Current State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot accept %s request in %s state", e.Op, e.Current)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ConfirmError reports a confirmation frame whose type code is not part of
// the firmware contract. The controller state is unchanged.
type ConfirmError struct {
	Raw     uint16
	Current State
}

func (e *ConfirmError) Error() string {
	return fmt.Sprintf("invalid PS confirm type %#x in %s state", e.Raw, e.Current)
}

func (e *ConfirmError) Unwrap() error {
	return ErrUnknownConfirm
}

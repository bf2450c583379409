package fw

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized firmware error codes. Transport failures surfaced by devices
// unwrap to exactly one of these.
var (
	ErrBusy        = errors.New("BUSY")
	ErrUnavailable = errors.New("UNAVAILABLE")
	ErrInternal    = errors.New("INTERNAL")
)

// TokenMap defines the error token mapping for one radio model family.
type TokenMap struct {
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
}

// FirmwareErrorMappings holds the deterministic token tables per model
// family. Matching is case-insensitive substring search; any token not
// listed maps to INTERNAL. Extend by adding a model entry and testing each
// token's normalization; unknown models fall back to "generic".
var FirmwareErrorMappings = map[string]TokenMap{
	"nimbus": {
		Busy: []string{
			"FW_BUSY",
			"CMD_QUEUE_FULL",
			"REQUEST_PENDING",
			"RATE_LIMITED",
		},
		Unavailable: []string{
			"FW_NOT_READY",
			"DEVICE_OFFLINE",
			"REBOOTING",
			"DEEP_SLEEP_TRANSITION",
			"NOT_READY",
			"OFFLINE",
		},
	},
	"generic": {
		Busy: []string{
			"BUSY",
			"RETRY",
			"RATE_LIMIT",
			"BACKOFF",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"REBOOT",
			"OFFLINE",
			"NOT_READY",
			"DEADLINE",
		},
	},
}

// FirmwareError wraps a device error with its normalized code and opaque
// diagnostic payload.
type FirmwareError struct {
	Code     error       // Normalized code
	Original error       // Device error
	Details  interface{} // Device payload (opaque)
}

func (e *FirmwareError) Error() string {
	return fmt.Sprintf("%v (firmware: %v)", e.Code, e.Original)
}

func (e *FirmwareError) Unwrap() error {
	return e.Code
}

// NormalizeFirmwareError maps a device error to a normalized code using the
// generic token table.
func NormalizeFirmwareError(devErr error, payload interface{}) error {
	return NormalizeFirmwareErrorForModel(devErr, payload, "generic")
}

// NormalizeFirmwareErrorForModel maps a device error using the token table
// of a specific model family.
func NormalizeFirmwareErrorForModel(devErr error, payload interface{}, model string) error {
	if devErr == nil {
		return nil
	}

	return &FirmwareError{
		Code:     mapFirmwareErrorToCode(devErr.Error(), model),
		Original: devErr,
		Details:  payload,
	}
}

// mapFirmwareErrorToCode resolves a device error message against the model's
// token table.
func mapFirmwareErrorToCode(msg string, model string) error {
	tokens, exists := FirmwareErrorMappings[model]
	if !exists {
		tokens = FirmwareErrorMappings["generic"]
	}

	upperMsg := strings.ToUpper(msg)

	for _, token := range tokens.Busy {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrBusy
		}
	}

	for _, token := range tokens.Unavailable {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrUnavailable
		}
	}

	// Unknown token maps to INTERNAL
	return ErrInternal
}

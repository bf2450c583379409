package fw

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeFirmwareError(t *testing.T) {
	tests := []struct {
		name         string
		devErr       error
		expectedCode error
		expectedMsg  string
	}{
		{
			name:         "nil error returns nil",
			devErr:       nil,
			expectedCode: nil,
		},
		{
			name:         "unknown error maps to INTERNAL",
			devErr:       errors.New("FLUX_CAPACITOR_FAULT"),
			expectedCode: ErrInternal,
			expectedMsg:  "INTERNAL (firmware: FLUX_CAPACITOR_FAULT)",
		},
		{
			name:         "generic busy token maps to BUSY",
			devErr:       errors.New("BUSY: try later"),
			expectedCode: ErrBusy,
			expectedMsg:  "BUSY (firmware: BUSY: try later)",
		},
		{
			name:         "generic unavailable token maps to UNAVAILABLE",
			devErr:       errors.New("device OFFLINE"),
			expectedCode: ErrUnavailable,
			expectedMsg:  "UNAVAILABLE (firmware: device OFFLINE)",
		},
		{
			name:         "context deadline maps to UNAVAILABLE",
			devErr:       context.DeadlineExceeded,
			expectedCode: ErrUnavailable,
			expectedMsg:  "UNAVAILABLE (firmware: context deadline exceeded)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeFirmwareError(tt.devErr, nil)

			if tt.expectedCode == nil {
				if result != nil {
					t.Errorf("Expected nil, got %v", result)
				}
				return
			}

			fwErr, ok := result.(*FirmwareError)
			if !ok {
				t.Fatalf("Expected FirmwareError, got %T", result)
			}
			if fwErr.Code != tt.expectedCode {
				t.Errorf("Expected code %v, got %v", tt.expectedCode, fwErr.Code)
			}
			if fwErr.Error() != tt.expectedMsg {
				t.Errorf("Expected message %q, got %q", tt.expectedMsg, fwErr.Error())
			}
			if !errors.Is(result, tt.expectedCode) {
				t.Errorf("Expected errors.Is(%v) to hold", tt.expectedCode)
			}
		})
	}
}

func TestNormalizeFirmwareErrorForModel(t *testing.T) {
	tests := []struct {
		name         string
		devErr       error
		model        string
		expectedCode error
	}{
		{
			name:         "nimbus queue full maps to BUSY",
			devErr:       errors.New("CMD_QUEUE_FULL: 8 requests pending"),
			model:        "nimbus",
			expectedCode: ErrBusy,
		},
		{
			name:         "nimbus reboot maps to UNAVAILABLE",
			devErr:       errors.New("REBOOTING: firmware upgrade in progress"),
			model:        "nimbus",
			expectedCode: ErrUnavailable,
		},
		{
			name:         "nimbus deep sleep transition maps to UNAVAILABLE",
			devErr:       errors.New("DEEP_SLEEP_TRANSITION"),
			model:        "nimbus",
			expectedCode: ErrUnavailable,
		},
		{
			name:         "unknown model falls back to generic table",
			devErr:       errors.New("BUSY"),
			model:        "martian",
			expectedCode: ErrBusy,
		},
		{
			name:         "nimbus unknown token maps to INTERNAL",
			devErr:       errors.New("E_WHAT"),
			model:        "nimbus",
			expectedCode: ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeFirmwareErrorForModel(tt.devErr, nil, tt.model)

			fwErr, ok := result.(*FirmwareError)
			if !ok {
				t.Fatalf("Expected FirmwareError, got %T", result)
			}
			if fwErr.Code != tt.expectedCode {
				t.Errorf("Expected code %v, got %v", tt.expectedCode, fwErr.Code)
			}
		})
	}
}

func TestFirmwareErrorUnwrap(t *testing.T) {
	original := errors.New("FW_BUSY")
	fwErr := &FirmwareError{
		Code:     ErrBusy,
		Original: original,
		Details:  map[string]interface{}{"queueDepth": 8},
	}

	if unwrapped := fwErr.Unwrap(); unwrapped != ErrBusy {
		t.Errorf("Expected unwrapped error %v, got %v", ErrBusy, unwrapped)
	}
}

func TestFirmwareErrorMappingsComplete(t *testing.T) {
	for _, model := range []string{"nimbus", "generic"} {
		if _, exists := FirmwareErrorMappings[model]; !exists {
			t.Errorf("Expected mapping table for %s to exist", model)
		}
	}
}

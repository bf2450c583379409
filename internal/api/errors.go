package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/radio-control/psc/internal/command"
	"github.com/radio-control/psc/internal/fw"
	"github.com/radio-control/psc/internal/ps"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// API error codes for security conditions surfaced through handlers
var (
	ErrUnauthorizedError = errors.New("UNAUTHORIZED")
	ErrForbiddenError    = errors.New("FORBIDDEN")
)

// ToAPIError converts an error to an API error with HTTP status code and JSON body.
func ToAPIError(ctx context.Context, err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	var fwErr *fw.FirmwareError

	// Check if it's already an API error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(ctx, apiErr.Code, apiErr.Message, apiErr.Details)
	}

	// Check if it's a normalized firmware error
	if errors.As(err, &fwErr) {
		code, statusCode := mapFirmwareError(fwErr.Code)
		message := getErrorMessage(fwErr.Code, fwErr.Original)
		return statusCode, marshalErrorResponse(ctx, code, message, fwErr.Details)
	}

	// Check for state machine guard rejections. The error text carries the
	// operation and current state, so it is surfaced as the message.
	if errors.Is(err, ps.ErrInvalidTransition) {
		return http.StatusConflict, marshalErrorResponse(ctx, "INVALID_TRANSITION", err.Error(), nil)
	}

	// Check for bare firmware error codes
	if errors.Is(err, fw.ErrBusy) {
		return http.StatusServiceUnavailable, marshalErrorResponse(ctx, "BUSY", getErrorMessage(fw.ErrBusy, err), nil)
	}
	if errors.Is(err, fw.ErrUnavailable) {
		return http.StatusServiceUnavailable, marshalErrorResponse(ctx, "UNAVAILABLE", getErrorMessage(fw.ErrUnavailable, err), nil)
	}
	if errors.Is(err, fw.ErrInternal) {
		return http.StatusInternalServerError, marshalErrorResponse(ctx, "INTERNAL", getErrorMessage(fw.ErrInternal, err), nil)
	}

	// Check for API-layer errors
	if errors.Is(err, command.ErrNotFound) {
		return http.StatusNotFound, marshalErrorResponse(ctx, "NOT_FOUND", "Radio not found", nil)
	}
	if errors.Is(err, command.ErrInvalidParameter) {
		return http.StatusBadRequest, marshalErrorResponse(ctx, "BAD_REQUEST", "Malformed or missing required parameter", nil)
	}
	if errors.Is(err, ErrUnauthorizedError) {
		return http.StatusUnauthorized, marshalErrorResponse(ctx, "UNAUTHORIZED", "Authentication required", nil)
	}
	if errors.Is(err, ErrForbiddenError) {
		return http.StatusForbidden, marshalErrorResponse(ctx, "FORBIDDEN", "Insufficient permissions", nil)
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError, marshalErrorResponse(ctx, "INTERNAL", "Internal server error", map[string]interface{}{
		"original": err.Error(),
	})
}

// mapFirmwareError maps firmware error codes to API error codes and HTTP status codes.
func mapFirmwareError(fwCode error) (string, int) {
	switch {
	case errors.Is(fwCode, fw.ErrBusy):
		return "BUSY", http.StatusServiceUnavailable
	case errors.Is(fwCode, fw.ErrUnavailable):
		return "UNAVAILABLE", http.StatusServiceUnavailable
	case errors.Is(fwCode, fw.ErrInternal):
		return "INTERNAL", http.StatusInternalServerError
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}

// getErrorMessage returns a user-friendly error message for the given error.
func getErrorMessage(code error, original error) string {
	switch {
	case errors.Is(code, fw.ErrBusy):
		return "Firmware is busy, please retry with backoff"
	case errors.Is(code, fw.ErrUnavailable):
		return "Firmware is temporarily unavailable"
	case errors.Is(code, fw.ErrInternal):
		return "Internal firmware error"
	case errors.Is(code, ErrUnauthorizedError):
		return "Authentication required"
	case errors.Is(code, ErrForbiddenError):
		return "Insufficient permissions"
	default:
		if original != nil {
			return original.Error()
		}
		return "Unknown error"
	}
}

// marshalErrorResponse creates a JSON error response with correlation ID.
func marshalErrorResponse(ctx context.Context, code, message string, details interface{}) []byte {
	response := Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: correlationID(ctx),
	}

	jsonBytes, err := json.Marshal(response)
	if err != nil {
		// Fallback error response if marshaling fails
		fallback := map[string]interface{}{
			"result":        "error",
			"code":          "INTERNAL",
			"message":       "Failed to marshal error response",
			"correlationId": correlationID(ctx),
		}
		jsonBytes, _ := json.Marshal(fallback)
		return jsonBytes
	}

	return jsonBytes
}

// NewAPIError creates a new API error.
func NewAPIError(code string, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/radio-control/psc/internal/audit"
)

// Response represents the unified envelope format.
type Response struct {
	Result        string      `json:"result"`
	Data          interface{} `json:"data,omitempty"`
	Code          string      `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

// SuccessResponse creates a success response.
func SuccessResponse(ctx context.Context, data interface{}) *Response {
	return &Response{
		Result:        "ok",
		Data:          data,
		CorrelationID: correlationID(ctx),
	}
}

// ErrorResponse creates an error response.
func ErrorResponse(ctx context.Context, code, message string, details interface{}) *Response {
	return &Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: correlationID(ctx),
	}
}

// WriteSuccess writes a success response to the HTTP response writer.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	response := SuccessResponse(r.Context(), data)
	writeResponse(w, http.StatusOK, response)
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, details interface{}) {
	response := ErrorResponse(r.Context(), code, message, details)
	writeResponse(w, statusCode, response)
}

// writeResponse writes a JSON response to the HTTP response writer.
func writeResponse(w http.ResponseWriter, statusCode int, response *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// The status line is already on the wire; report and move on.
		fmt.Fprintf(os.Stderr, "Failed to encode API response: %v\n", err)
	}
}

// correlationID returns the correlation ID assigned to the request, minting
// a fresh one for responses produced outside the correlation middleware.
func correlationID(ctx context.Context) string {
	if id := audit.CorrelationID(ctx); id != "" {
		return id
	}
	return audit.NewCorrelationID()
}

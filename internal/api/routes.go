package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radio-control/psc/internal/audit"
	"github.com/radio-control/psc/internal/auth"
	"github.com/radio-control/psc/internal/ps"
)

// RegisterRoutes registers all OpenAPI v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// API v1 base path
	apiV1 := "/api/v1"

	// Health endpoint (no auth required)
	mux.HandleFunc(apiV1+"/health", s.withCorrelation(s.handleHealth))

	// Prometheus exposition (no auth, scraped internally)
	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}

	// If no auth middleware, register routes without protection
	if s.authMiddleware == nil {
		// Capabilities endpoint
		mux.HandleFunc(apiV1+"/capabilities", s.withCorrelation(s.handleCapabilities))

		// Radios endpoints
		mux.HandleFunc(apiV1+"/radios", s.withCorrelation(s.handleRadios))

		// Radio-specific endpoints (power save, individual radio)
		mux.HandleFunc(apiV1+"/radios/", s.withCorrelation(s.handleRadioEndpoints))

		// Telemetry endpoint
		mux.HandleFunc(apiV1+"/telemetry", s.withCorrelation(s.handleTelemetry))
		return
	}

	// Register routes with authentication and authorization
	// Capabilities endpoint (viewer access)
	mux.HandleFunc(apiV1+"/capabilities", s.withCorrelation(s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(s.handleCapabilities))))

	// Radios endpoints (viewer access)
	mux.HandleFunc(apiV1+"/radios", s.withCorrelation(s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(s.handleRadios))))

	// Radio-specific endpoints (power save, individual radio)
	mux.HandleFunc(apiV1+"/radios/", s.withCorrelation(s.handleRadioEndpoints))

	// Telemetry endpoint (viewer access)
	mux.HandleFunc(apiV1+"/telemetry", s.withCorrelation(s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeTelemetry)(s.handleTelemetry))))
}

// withCorrelation assigns the request's correlation ID before any other
// handling, so rejection envelopes, audit entries and success responses all
// echo the same ID. An inbound X-Correlation-Id header is honored.
func (s *Server) withCorrelation(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-Id")
		if id == "" {
			id = audit.NewCorrelationID()
		}
		w.Header().Set("X-Correlation-Id", id)
		next(w, r.WithContext(audit.WithCorrelationID(r.Context(), id)))
	}
}

// handleCapabilities handles GET /capabilities
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	// Return capabilities
	capabilities := map[string]interface{}{
		"telemetry": []string{"sse"},
		"commands":  []string{"http-json"},
		"psOps":     []string{string(ps.OpEnable), string(ps.OpDisable), string(ps.OpReconfigure)},
		"psStates": []string{
			ps.StateNone.String(),
			ps.StateDisableRequestSent.String(),
			ps.StateEnableRequestSent.String(),
			ps.StateEnabled.String(),
		},
		"version": "1.0.0",
	}

	WriteSuccess(w, r, capabilities)
}

// handleRadios handles GET /radios
func (s *Server) handleRadios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	// Fetch radios from RadioManager
	if s.radioManager == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Radio manager not available", nil)
		return
	}

	list := s.radioManager.List()
	WriteSuccess(w, r, list)
}

// handleRadioEndpoints handles all radio-specific endpoints.
// Routes to appropriate handler based on path.
func (s *Server) handleRadioEndpoints(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// Extract radio ID and determine endpoint type
	radioID := s.extractRadioID(path)
	if radioID == "" {
		WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST",
			"Radio ID is required", nil)
		return
	}

	// Apply authentication and authorization based on endpoint type
	if s.authMiddleware != nil {
		// Route based on path suffix with appropriate auth
		if strings.HasSuffix(path, "/ps/reconfigure") {
			// Reconfigure requires control scope
			s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeControl)(s.handleRadioPSReconfigure))(w, r)
		} else if strings.HasSuffix(path, "/ps") {
			if r.Method == http.MethodGet {
				// GET power save requires read scope
				s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(s.handleRadioPS))(w, r)
			} else if r.Method == http.MethodPost {
				// POST power save requires control scope
				s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeControl)(s.handleRadioPS))(w, r)
			} else {
				s.handleRadioPS(w, r)
			}
		} else {
			// Individual radio endpoint requires read scope
			s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(s.handleRadioByID))(w, r)
		}
	} else {
		// No auth middleware, route directly
		if strings.HasSuffix(path, "/ps/reconfigure") {
			s.handleRadioPSReconfigure(w, r)
		} else if strings.HasSuffix(path, "/ps") {
			s.handleRadioPS(w, r)
		} else {
			// Default to individual radio endpoint
			s.handleRadioByID(w, r)
		}
	}
}

// handleRadioByID handles GET /radios/{id}
func (s *Server) handleRadioByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	// Extract radio ID from path
	radioID := s.extractRadioID(r.URL.Path)
	if radioID == "" {
		WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST",
			"Radio ID is required", nil)
		return
	}

	if s.radioManager == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Radio manager not available", nil)
		return
	}

	snapshot, err := s.radioManager.Snapshot(radioID)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "Radio not found", nil)
		return
	}

	WriteSuccess(w, r, snapshot)
}

// handleRadioPS handles GET/POST /radios/{id}/ps
func (s *Server) handleRadioPS(w http.ResponseWriter, r *http.Request) {
	// Extract radio ID from path
	radioID := s.extractRadioID(r.URL.Path)
	if radioID == "" {
		WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST",
			"Radio ID is required", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetPS(w, r, radioID)
	case http.MethodPost:
		s.handleSetPS(w, r, radioID)
	default:
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET and POST methods are allowed", nil)
	}
}

// handleGetPS handles GET /radios/{id}/ps
func (s *Server) handleGetPS(w http.ResponseWriter, r *http.Request, radioID string) {
	if s.orchestrator == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Service not available", nil)
		return
	}
	psStatus, err := s.orchestrator.PSStatus(r.Context(), radioID)
	if err != nil {
		status, body := ToAPIError(r.Context(), err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}
	WriteSuccess(w, r, psStatus)
}

// handleSetPS handles POST /radios/{id}/ps
func (s *Server) handleSetPS(w http.ResponseWriter, r *http.Request, radioID string) {
	// Parse request body (strict JSON)
	var request struct {
		Enabled *bool `json:"enabled"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&request); err != nil {
		WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST",
			"Malformed JSON or unknown fields", nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Trailing data after JSON object", nil)
		return
	}
	if request.Enabled == nil {
		WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST",
			"The enabled field is required", nil)
		return
	}

	if s.orchestrator == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Service not available", nil)
		return
	}

	var err error
	if *request.Enabled {
		err = s.orchestrator.EnablePS(r.Context(), radioID)
	} else {
		err = s.orchestrator.DisablePS(r.Context(), radioID)
	}
	if err != nil {
		status, body := ToAPIError(r.Context(), err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}

	// The request is dispatched, not yet confirmed; report the pending state.
	data := map[string]interface{}{"radioId": radioID, "enabled": *request.Enabled}
	if s.radioManager != nil {
		if snapshot, err := s.radioManager.Snapshot(radioID); err == nil {
			data["psState"] = snapshot.PSState
		}
	}
	WriteSuccess(w, r, data)
}

// handleRadioPSReconfigure handles POST /radios/{id}/ps/reconfigure
func (s *Server) handleRadioPSReconfigure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}

	// Extract radio ID from path
	radioID := s.extractRadioID(r.URL.Path)
	if radioID == "" {
		WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST",
			"Radio ID is required", nil)
		return
	}

	if s.orchestrator == nil || s.radioManager == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Service not available", nil)
		return
	}

	// Outside PS_ENABLED the reconfigure is a silent no-op; the state read
	// decides what this call reports back.
	snapshot, err := s.radioManager.Snapshot(radioID)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "Radio not found", nil)
		return
	}

	if err := s.orchestrator.ReconfigureUAPSD(r.Context(), radioID); err != nil {
		status, body := ToAPIError(r.Context(), err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}

	WriteSuccess(w, r, map[string]interface{}{
		"radioId": radioID,
		"noop":    snapshot.PSState != ps.StateEnabled,
	})
}

// handleTelemetry handles GET /telemetry (SSE)
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	// Wire to Telemetry Hub Subscribe
	if s.telemetryHub == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	// Subscribe to telemetry stream
	ctx := r.Context()
	if err := s.telemetryHub.Subscribe(ctx, w, r); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "INTERNAL",
			"Failed to subscribe to telemetry stream", nil)
		return
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	// Calculate uptime
	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	// Check subsystem health
	subsystems := s.checkSubsystemHealth()

	// Determine overall health status
	overallStatus := "ok"
	if !subsystems["telemetry"] || !subsystems["orchestrator"] || !subsystems["radioManager"] {
		overallStatus = "degraded"
	}

	health := map[string]interface{}{
		"status":     overallStatus,
		"uptimeSec":  uptime,
		"version":    "1.0.0",
		"subsystems": subsystems,
	}

	// Return appropriate HTTP status based on health
	if overallStatus == "ok" {
		WriteSuccess(w, r, health)
	} else {
		// Return 503 Service Unavailable for degraded health
		// Pass health data as details so it's available in the error response
		WriteError(w, r, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"One or more subsystems are unavailable", health)
	}
}

// checkSubsystemHealth checks the health of all subsystems.
func (s *Server) checkSubsystemHealth() map[string]bool {
	subsystems := make(map[string]bool)

	// Check telemetry hub
	subsystems["telemetry"] = s.telemetryHub != nil

	// Check orchestrator
	subsystems["orchestrator"] = s.orchestrator != nil

	// Check radio manager
	subsystems["radioManager"] = s.radioManager != nil

	// Check auth middleware (optional, so always true if not required)
	subsystems["auth"] = true // Auth is optional, so always considered healthy

	return subsystems
}

// extractRadioID extracts the radio ID from a URL path.
// Handles paths like /api/v1/radios/{id}/ps, /api/v1/radios/{id}/ps/reconfigure, etc.
func (s *Server) extractRadioID(path string) string {
	// Remove /api/v1/radios/ prefix
	prefix := "/api/v1/radios/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}

	// Get the part after the prefix
	remaining := path[len(prefix):]

	// Split by '/' to get the radio ID (first part)
	parts := strings.Split(remaining, "/")
	if len(parts) == 0 {
		return ""
	}

	radioID := parts[0]
	if radioID == "" {
		return ""
	}

	return radioID
}

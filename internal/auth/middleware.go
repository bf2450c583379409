package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/xid"
)

// Claims represents the parsed token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

// ContextKey is used for storing claims in request context.
type ContextKey string

const (
	ClaimsKey ContextKey = "claims"
)

// Role constants per OpenAPI §1.2
const (
	RoleViewer     = "viewer"
	RoleController = "controller"
)

// Scope constants per OpenAPI §1.2
const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

// Middleware handles authentication and authorization.
type Middleware struct {
	verifier *Verifier
	corrFn   func(context.Context) string
}

// NewMiddleware creates a new auth middleware backed by a token verifier.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{
		verifier: verifier,
	}
}

// SetCorrelationFunc wires the request correlation ID lookup so rejection
// envelopes echo the ID assigned upstream instead of minting a fresh one.
func (m *Middleware) SetCorrelationFunc(fn func(context.Context) string) {
	m.corrFn = fn
}

// RequireAuth creates middleware that requires authentication.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health endpoint
		if r.URL.Path == "/api/v1/health" {
			next(w, r)
			return
		}

		token, err := m.extractBearerToken(r)
		if err != nil {
			m.writeError(w, r.Context(), http.StatusUnauthorized, "UNAUTHORIZED",
				"Authentication required", nil)
			return
		}

		claims, err := m.verifyToken(token)
		if err != nil {
			m.writeError(w, r.Context(), http.StatusUnauthorized, "UNAUTHORIZED",
				"Invalid token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope creates middleware that requires specific scopes.
func (m *Middleware) RequireScope(requiredScopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				m.writeError(w, r.Context(), http.StatusUnauthorized, "UNAUTHORIZED",
					"Authentication required", nil)
				return
			}

			if !m.hasRequiredScopes(claims, requiredScopes) {
				m.writeError(w, r.Context(), http.StatusForbidden, "FORBIDDEN",
					"Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}

// RequireRole creates middleware that requires specific roles.
func (m *Middleware) RequireRole(requiredRoles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				m.writeError(w, r.Context(), http.StatusUnauthorized, "UNAUTHORIZED",
					"Authentication required", nil)
				return
			}

			if !m.hasRequiredRoles(claims, requiredRoles) {
				m.writeError(w, r.Context(), http.StatusForbidden, "FORBIDDEN",
					"Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}

// extractBearerToken extracts the bearer token from the Authorization header.
func (m *Middleware) extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("empty token")
	}

	return token, nil
}

// verifyToken verifies the token and returns claims.
func (m *Middleware) verifyToken(token string) (*Claims, error) {
	if m.verifier == nil {
		return nil, fmt.Errorf("no token verifier configured")
	}
	return m.verifier.VerifyToken(token)
}

// hasRequiredScopes checks if the user has all required scopes.
func (m *Middleware) hasRequiredScopes(claims *Claims, requiredScopes []string) bool {
	if claims == nil {
		return false
	}

	for _, required := range requiredScopes {
		found := false
		for _, scope := range claims.Scopes {
			if scope == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// hasRequiredRoles checks if the user has any of the required roles.
func (m *Middleware) hasRequiredRoles(claims *Claims, requiredRoles []string) bool {
	if claims == nil {
		return false
	}

	// If no roles are required, return true (no requirements)
	if len(requiredRoles) == 0 {
		return true
	}

	for _, required := range requiredRoles {
		for _, role := range claims.Roles {
			if role == required {
				return true
			}
		}
	}

	return false
}

// GetClaimsFromContext extracts claims from a context, or nil when the
// request never passed authentication.
func GetClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetClaimsFromRequest extracts claims from the request context.
// This is a helper function for use in handlers.
func GetClaimsFromRequest(r *http.Request) *Claims {
	return GetClaimsFromContext(r.Context())
}

// IsViewer checks if the user has viewer role.
func (m *Middleware) IsViewer(claims *Claims) bool {
	return m.hasRequiredRoles(claims, []string{RoleViewer})
}

// IsController checks if the user has controller role.
func (m *Middleware) IsController(claims *Claims) bool {
	return m.hasRequiredRoles(claims, []string{RoleController})
}

// CanRead checks if the user can perform read operations.
func (m *Middleware) CanRead(claims *Claims) bool {
	return m.hasRequiredScopes(claims, []string{ScopeRead})
}

// CanControl checks if the user can perform control operations.
func (m *Middleware) CanControl(claims *Claims) bool {
	return m.hasRequiredScopes(claims, []string{ScopeControl})
}

// CanAccessTelemetry checks if the user can access telemetry.
func (m *Middleware) CanAccessTelemetry(claims *Claims) bool {
	return m.hasRequiredScopes(claims, []string{ScopeTelemetry})
}

// writeError writes an error response in the API envelope format.
func (m *Middleware) writeError(w http.ResponseWriter, ctx context.Context, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": m.correlationID(ctx),
	}

	if details != nil {
		response["details"] = details
	}

	_ = json.NewEncoder(w).Encode(response)
}

// correlationID returns the request's assigned correlation ID, minting one
// when the request was rejected before correlation tagging.
func (m *Middleware) correlationID(ctx context.Context) string {
	if m.corrFn != nil {
		if id := m.corrFn(ctx); id != "" {
			return id
		}
	}
	return xid.New().String()
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/radio-control/psc/internal/auth"
	"github.com/radio-control/psc/internal/config"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp     time.Time              `json:"ts"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	User          string                 `json:"user"`
	RadioID       string                 `json:"radioId"`
	Action        string                 `json:"action"`
	Params        map[string]interface{} `json:"params,omitempty"`
	Outcome       string                 `json:"outcome"`
	Code          string                 `json:"code"`
	LatencyMs     int64                  `json:"latencyMs"`
}

// Logger writes append-only JSONL audit records with size-based rotation.
type Logger struct {
	mu       sync.Mutex
	out      *lumberjack.Logger
	filePath string
}

// NewLogger creates a new audit logger writing to audit.jsonl under the
// configured directory.
func NewLogger(cfg *config.AuditConfig) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(cfg.Dir, "audit.jsonl")

	out := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	return &Logger{
		out:      out,
		filePath: filePath,
	}, nil
}

// LogAction logs an audit record for a command action.
func (l *Logger) LogAction(ctx context.Context, action, radioID, result string, latency time.Duration) {
	entry := Entry{
		Timestamp:     time.Now().UTC(),
		CorrelationID: CorrelationID(ctx),
		User:          userFromContext(ctx),
		RadioID:       radioID,
		Action:        action,
		Outcome:       result,
		Code:          codeFromResult(result),
		LatencyMs:     latency.Milliseconds(),
	}

	l.writeEntry(entry)
}

// LogControlAction logs a control action with detailed parameters.
func (l *Logger) LogControlAction(ctx context.Context, action, radioID string, params map[string]interface{}, outcome string, err error) {
	code := "SUCCESS"
	if err != nil {
		code = codeFromError(err)
	}

	entry := Entry{
		Timestamp:     time.Now().UTC(),
		CorrelationID: CorrelationID(ctx),
		User:          userFromContext(ctx),
		RadioID:       radioID,
		Action:        action,
		Params:        params,
		Outcome:       outcome,
		Code:          code,
	}

	l.writeEntry(entry)
}

// writeEntry writes an audit entry to the log file. Audit failures never
// block the command path; they are reported on stderr and dropped.
func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// userFromContext extracts the authenticated subject, if any.
func userFromContext(ctx context.Context) string {
	if claims := auth.GetClaimsFromContext(ctx); claims != nil && claims.Subject != "" {
		return claims.Subject
	}
	return "unknown"
}

// codeFromResult maps result strings to standardized codes.
func codeFromResult(result string) string {
	switch result {
	case "SUCCESS":
		return "SUCCESS"
	case "INVALID_TRANSITION":
		return "INVALID_TRANSITION"
	case "NOT_FOUND":
		return "NOT_FOUND"
	case "BUSY":
		return "BUSY"
	case "UNAVAILABLE":
		return "UNAVAILABLE"
	case "BAD_REQUEST":
		return "BAD_REQUEST"
	case "ERROR":
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// codeFromError maps error types to standardized codes.
func codeFromError(err error) string {
	if err == nil {
		return "SUCCESS"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "INVALID_TRANSITION"):
		return "INVALID_TRANSITION"
	case strings.Contains(errStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(errStr, "BUSY"):
		return "BUSY"
	case strings.Contains(errStr, "UNAVAILABLE"):
		return "UNAVAILABLE"
	case strings.Contains(errStr, "UNKNOWN_CONFIRM"):
		return "UNKNOWN_CONFIRM"
	case strings.Contains(errStr, "UNAUTHORIZED"):
		return "UNAUTHORIZED"
	case strings.Contains(errStr, "FORBIDDEN"):
		return "FORBIDDEN"
	default:
		return "ERROR"
	}
}

// Close closes the audit logger and its file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out != nil {
		err := l.out.Close()
		l.out = nil
		return err
	}
	return nil
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate forces a log rotation, for SIGHUP-style log management.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return fmt.Errorf("audit logger is closed")
	}
	return l.out.Rotate()
}

type contextKey string

const correlationKey contextKey = "correlationId"

// NewCorrelationID returns a fresh globally-unique correlation ID.
func NewCorrelationID() string {
	return xid.New().String()
}

// WithCorrelationID stores a correlation ID in the context for audit
// entries and API responses.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID returns the correlation ID carried by the context, or ""
// when the request was never tagged.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

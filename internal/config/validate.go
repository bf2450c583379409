package config

import (
	"fmt"
	"time"
)

// Validate enforces configuration rules across every section.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := validateAuth(&cfg.Auth); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}
	if err := validateAudit(&cfg.Audit); err != nil {
		return fmt.Errorf("audit validation failed: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry validation failed: %w", err)
	}
	if err := validateCommand(&cfg.Command); err != nil {
		return fmt.Errorf("command timeout validation failed: %w", err)
	}
	if err := cfg.PSDefaults.Validate(); err != nil {
		return fmt.Errorf("psDefaults validation failed: %w", err)
	}
	if err := validateRadios(cfg); err != nil {
		return fmt.Errorf("radio validation failed: %w", err)
	}

	return nil
}

func validateServer(s *ServerConfig) error {
	if s.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if s.ReadHeaderTimeoutSec <= 0 {
		return fmt.Errorf("read header timeout must be positive, got %d", s.ReadHeaderTimeoutSec)
	}
	if s.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %d", s.ShutdownTimeoutSec)
	}
	return nil
}

func validateAuth(a *AuthConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.Secret == "" && a.JWKSURL == "" {
		return fmt.Errorf("auth enabled but neither secret nor jwksUrl configured")
	}
	return nil
}

func validateAudit(a *AuditConfig) error {
	if a.Dir == "" {
		return fmt.Errorf("audit directory must not be empty")
	}
	if a.MaxSizeMB <= 0 {
		return fmt.Errorf("audit max size must be positive, got %d", a.MaxSizeMB)
	}
	if a.MaxBackups < 0 {
		return fmt.Errorf("audit max backups must be non-negative, got %d", a.MaxBackups)
	}
	if a.MaxAgeDays < 0 {
		return fmt.Errorf("audit max age must be non-negative, got %d", a.MaxAgeDays)
	}
	return nil
}

func validateTelemetry(t *TelemetryConfig) error {
	if t.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", t.EventBufferSize)
	}
	if t.HeartbeatIntervalSec <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %d", t.HeartbeatIntervalSec)
	}

	// Jitter must stay below half the interval to keep the cadence stable.
	if t.HeartbeatJitterSec < 0 {
		return fmt.Errorf("heartbeat jitter must be non-negative, got %d", t.HeartbeatJitterSec)
	}
	if t.HeartbeatJitter() > t.HeartbeatInterval()/2 {
		return fmt.Errorf("heartbeat jitter %v exceeds 50%% of interval %v", t.HeartbeatJitter(), t.HeartbeatInterval())
	}

	return nil
}

func validateCommand(c *CommandConfig) error {
	maxTimeout := 5 * time.Minute

	timeouts := []struct {
		name string
		dur  time.Duration
	}{
		{"enable", c.EnableTimeout()},
		{"disable", c.DisableTimeout()},
		{"reconfigure", c.ReconfigureTimeout()},
	}
	for _, t := range timeouts {
		if t.dur <= 0 {
			return fmt.Errorf("command timeout %s must be positive, got %v", t.name, t.dur)
		}
		if t.dur > maxTimeout {
			return fmt.Errorf("command timeout %s %v is outside reasonable range (max %v)", t.name, t.dur, maxTimeout)
		}
	}

	return nil
}

func validateRadios(cfg *Config) error {
	seen := make(map[string]bool)
	for i, r := range cfg.Radios {
		if r.ID == "" {
			return fmt.Errorf("radio %d has no ID", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate radio ID %s", r.ID)
		}
		seen[r.ID] = true

		switch r.Driver {
		case "", "sim":
		default:
			return fmt.Errorf("radio %s has unknown driver %q", r.ID, r.Driver)
		}

		if r.Sim.ConfirmDelayMs < 0 || r.Sim.BusyWindowMs < 0 || r.Sim.QueueSize < 0 {
			return fmt.Errorf("radio %s has negative sim timing values", r.ID)
		}

		if r.Params != nil {
			if err := r.Params.Validate(); err != nil {
				return fmt.Errorf("radio %s params: %w", r.ID, err)
			}
		}
	}
	return nil
}

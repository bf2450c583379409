package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Load merges defaults from Default() + an optional YAML file + PSC_*
// environment overrides, then validates the result.
//
// The file is resolved from the path argument, falling back to the
// PSC_CONFIG environment variable. An empty resolution skips the file
// layer entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PSC_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays configuration from a YAML file onto cfg.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies PSC_* environment variables on top of the
// file and default layers.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("PSC_ADDR"); val != "" {
		cfg.Server.Addr = val
	}

	if val := os.Getenv("PSC_AUTH_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Auth.Enabled = enabled
		}
	}
	if val := os.Getenv("PSC_JWT_SECRET"); val != "" {
		cfg.Auth.Secret = val
	}
	if val := os.Getenv("PSC_JWKS_URL"); val != "" {
		cfg.Auth.JWKSURL = val
	}

	if val := os.Getenv("PSC_AUDIT_DIR"); val != "" {
		cfg.Audit.Dir = val
	}

	if val := os.Getenv("PSC_EVENT_BUFFER_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.Telemetry.EventBufferSize = size
		}
	}
	if val := os.Getenv("PSC_HEARTBEAT_INTERVAL_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Telemetry.HeartbeatIntervalSec = sec
		}
	}
	if val := os.Getenv("PSC_HEARTBEAT_JITTER_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Telemetry.HeartbeatJitterSec = sec
		}
	}

	if val := os.Getenv("PSC_ENABLE_TIMEOUT_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Command.EnableTimeoutSec = sec
		}
	}
	if val := os.Getenv("PSC_DISABLE_TIMEOUT_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Command.DisableTimeoutSec = sec
		}
	}
	if val := os.Getenv("PSC_RECONFIGURE_TIMEOUT_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Command.ReconfigureTimeoutSec = sec
		}
	}

	if val := os.Getenv("PSC_SUSPEND_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Suspend.Enabled = enabled
		}
	}
}

package config

import (
	"time"

	"github.com/radio-control/psc/internal/ps"
)

// Config is the complete configuration for the Power-Save Controller.
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Auth       AuthConfig      `yaml:"auth"`
	Audit      AuditConfig     `yaml:"audit"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	Command    CommandConfig   `yaml:"command"`
	Suspend    SuspendConfig   `yaml:"suspend"`
	PSDefaults ps.Params       `yaml:"psDefaults"`
	Radios     []RadioConfig   `yaml:"radios"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr                 string `yaml:"addr"`
	ReadHeaderTimeoutSec int    `yaml:"readHeaderTimeoutSec"`
	ShutdownTimeoutSec   int    `yaml:"shutdownTimeoutSec"`
}

// ReadHeaderTimeout returns the header read deadline as a duration.
func (s ServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(s.ReadHeaderTimeoutSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget as a duration.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSec) * time.Second
}

// AuthConfig holds bearer-token authentication settings. When disabled the
// API accepts every request.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Secret   string `yaml:"secret"`
	JWKSURL  string `yaml:"jwksUrl"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// AuditConfig holds audit log rotation settings.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// TelemetryConfig holds SSE event stream settings.
type TelemetryConfig struct {
	EventBufferSize      int `yaml:"eventBufferSize"`
	HeartbeatIntervalSec int `yaml:"heartbeatIntervalSec"`
	HeartbeatJitterSec   int `yaml:"heartbeatJitterSec"`
}

// HeartbeatInterval returns the heartbeat cadence as a duration.
func (t TelemetryConfig) HeartbeatInterval() time.Duration {
	return time.Duration(t.HeartbeatIntervalSec) * time.Second
}

// HeartbeatJitter returns the heartbeat jitter as a duration.
func (t TelemetryConfig) HeartbeatJitter() time.Duration {
	return time.Duration(t.HeartbeatJitterSec) * time.Second
}

// CommandConfig holds per-operation timeout classes.
type CommandConfig struct {
	EnableTimeoutSec      int `yaml:"enableTimeoutSec"`
	DisableTimeoutSec     int `yaml:"disableTimeoutSec"`
	ReconfigureTimeoutSec int `yaml:"reconfigureTimeoutSec"`
}

// EnableTimeout returns the enable request deadline as a duration.
func (c CommandConfig) EnableTimeout() time.Duration {
	return time.Duration(c.EnableTimeoutSec) * time.Second
}

// DisableTimeout returns the disable request deadline as a duration.
func (c CommandConfig) DisableTimeout() time.Duration {
	return time.Duration(c.DisableTimeoutSec) * time.Second
}

// ReconfigureTimeout returns the UAPSD reconfigure deadline as a duration.
func (c CommandConfig) ReconfigureTimeout() time.Duration {
	return time.Duration(c.ReconfigureTimeoutSec) * time.Second
}

// SuspendConfig holds the host suspend/resume bridge settings.
type SuspendConfig struct {
	Enabled bool   `yaml:"enabled"`
	Who     string `yaml:"who"`
	Why     string `yaml:"why"`
}

// RadioConfig describes one managed radio link.
type RadioConfig struct {
	ID     string     `yaml:"id"`
	Model  string     `yaml:"model"`
	Driver string     `yaml:"driver"`
	Sim    SimConfig  `yaml:"sim"`
	Params *ps.Params `yaml:"params"`
}

// SimConfig holds knobs for the simulated firmware driver.
type SimConfig struct {
	ConfirmDelayMs  int  `yaml:"confirmDelayMs"`
	QueueSize       int  `yaml:"queueSize"`
	BusyWindowMs    int  `yaml:"busyWindowMs"`
	DropConfirms    bool `yaml:"dropConfirms"`
	CorruptConfirms bool `yaml:"corruptConfirms"`
}

// ConfirmDelay returns the simulated confirmation latency as a duration.
func (s SimConfig) ConfirmDelay() time.Duration {
	return time.Duration(s.ConfirmDelayMs) * time.Millisecond
}

// BusyWindow returns the simulated busy window as a duration.
func (s SimConfig) BusyWindow() time.Duration {
	return time.Duration(s.BusyWindowMs) * time.Millisecond
}

// Default returns the baseline configuration: one simulated radio, auth off,
// firmware default power-save parameters.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                 ":8080",
			ReadHeaderTimeoutSec: 5,
			ShutdownTimeoutSec:   10,
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Audit: AuditConfig{
			Dir:        "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   false,
		},
		Telemetry: TelemetryConfig{
			EventBufferSize:      50,
			HeartbeatIntervalSec: 15,
			HeartbeatJitterSec:   2,
		},
		Command: CommandConfig{
			EnableTimeoutSec:      10,
			DisableTimeoutSec:     10,
			ReconfigureTimeoutSec: 10,
		},
		Suspend: SuspendConfig{
			Enabled: false,
			Who:     "psc",
			Why:     "quiescing radio power save before sleep",
		},
		PSDefaults: ps.DefaultParams(),
		Radios: []RadioConfig{
			{
				ID:     "radio-01",
				Model:  "nimbus",
				Driver: "sim",
			},
		},
	}
}

// ParamsFor resolves the effective power-save parameters for one radio:
// the per-radio override when present, otherwise the global defaults.
func (c *Config) ParamsFor(r RadioConfig) ps.Params {
	if r.Params != nil {
		return *r.Params
	}
	return c.PSDefaults
}

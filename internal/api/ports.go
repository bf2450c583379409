// Package api defines ports (interfaces) for API server dependencies.
package api

import (
	"context"
	"net/http"

	"github.com/radio-control/psc/internal/command"
	"github.com/radio-control/psc/internal/radio"
	"github.com/radio-control/psc/internal/telemetry"
)

// OrchestratorPort defines the minimal interface the API needs from the orchestrator.
type OrchestratorPort interface {
	EnablePS(ctx context.Context, radioID string) error
	DisablePS(ctx context.Context, radioID string) error
	ReconfigureUAPSD(ctx context.Context, radioID string) error
	PSStatus(ctx context.Context, radioID string) (*command.PSStatus, error)
}

// TelemetryPort defines the minimal interface the API needs from the telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// RadioReadPort defines the minimal interface for radio read operations.
type RadioReadPort interface {
	Snapshot(radioID string) (radio.Snapshot, error)
	List() []radio.Snapshot
}

// Compile-time assertions for port conformance
var _ OrchestratorPort = (*command.Orchestrator)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
var _ RadioReadPort = (*radio.Manager)(nil)

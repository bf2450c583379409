// Package command defines ports (interfaces) for orchestrator operations.
package command

import (
	"context"
	"errors"

	"github.com/radio-control/psc/internal/ps"
	"github.com/radio-control/psc/internal/radio"
	"github.com/radio-control/psc/internal/telemetry"
)

// OrchestratorPort defines the minimal interface the API needs from the orchestrator.
type OrchestratorPort interface {
	EnablePS(ctx context.Context, radioID string) error
	DisablePS(ctx context.Context, radioID string) error
	ReconfigureUAPSD(ctx context.Context, radioID string) error
	PSStatus(ctx context.Context, radioID string) (*PSStatus, error)
}

// RadioManager is the inventory surface the orchestrator needs.
type RadioManager interface {
	Get(radioID string) (*radio.Radio, error)
}

// EventPublisher is the telemetry surface the orchestrator publishes to.
type EventPublisher interface {
	PublishRadio(radioID string, event telemetry.Event) error
}

// PSStatus reports one radio's power-save view.
type PSStatus struct {
	RadioID string    `json:"radioId"`
	State   ps.State  `json:"psState"`
	Params  ps.Params `json:"psParams"`
}

// ErrNotFound indicates a requested radio was not found.
var ErrNotFound = errors.New("NOT_FOUND")

// ErrInvalidParameter indicates a required parameter is missing or structurally invalid.
var ErrInvalidParameter = errors.New("BAD_REQUEST")

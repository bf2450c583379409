package suspend

import (
	"context"

	"github.com/radio-control/psc/internal/command"
	"github.com/radio-control/psc/internal/radio"
)

// PowerControl dispatches power-save commands to radios.
type PowerControl interface {
	EnablePS(ctx context.Context, radioID string) error
	DisablePS(ctx context.Context, radioID string) error
}

// RadioLister reports the current radio inventory.
type RadioLister interface {
	List() []radio.Snapshot
}

// Compile-time interface checks
var _ PowerControl = (*command.Orchestrator)(nil)
var _ RadioLister = (*radio.Manager)(nil)

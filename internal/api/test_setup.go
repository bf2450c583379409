package api

import (
	"context"
	"testing"

	"github.com/radio-control/psc/internal/audit"
	"github.com/radio-control/psc/internal/command"
	"github.com/radio-control/psc/internal/config"
	"github.com/radio-control/psc/internal/fw/fake"
	"github.com/radio-control/psc/internal/ps"
	"github.com/radio-control/psc/internal/radio"
	"github.com/radio-control/psc/internal/telemetry"
)

// setupAPITest creates a fully wired API test environment with one fake radio.
func setupAPITest(t *testing.T) (*Server, *radio.Manager, *command.Orchestrator, *fake.Device) {
	t.Helper()

	cfg := config.Default()
	hub := telemetry.NewHub(&cfg.Telemetry)
	t.Cleanup(hub.Stop)

	manager := radio.NewManager()
	t.Cleanup(func() { _ = manager.Close() })

	orch := command.NewOrchestrator(hub, &cfg.Command, manager)
	manager.SetConfirmHandler(orch)

	auditLogger, err := audit.NewLogger(&config.AuditConfig{Dir: t.TempDir(), MaxSizeMB: 10, MaxBackups: 1, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	t.Cleanup(func() { _ = auditLogger.Close() })
	orch.SetAuditLogger(auditLogger)

	dev := fake.NewDevice("radio-01")
	controller := ps.NewController(dev, orch.ObserverFor("radio-01"))
	if err := manager.Add(&radio.Radio{
		ID:         "radio-01",
		Model:      "fake-radio",
		Controller: controller,
		Device:     dev,
		Params:     ps.DefaultParams(),
	}); err != nil {
		t.Fatalf("Failed to add radio: %v", err)
	}

	server := NewServer(hub, orch, manager, &cfg.Server)
	return server, manager, orch, dev
}

// walkToEnabled drives one radio to PS_ENABLED through the orchestrator,
// delivering the sleep confirmation directly instead of through the pump.
func walkToEnabled(t *testing.T, orch *command.Orchestrator, radioID string) {
	t.Helper()

	if err := orch.EnablePS(context.Background(), radioID); err != nil {
		t.Fatalf("EnablePS() failed: %v", err)
	}
	if err := orch.HandleConfirm(radioID, ps.NewConfirmFrame(ps.ConfirmSleep)); err != nil {
		t.Fatalf("HandleConfirm() failed: %v", err)
	}
}

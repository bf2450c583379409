package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/radio-control/psc/internal/fw"
	"github.com/radio-control/psc/internal/metrics"
	"github.com/radio-control/psc/internal/ps"
	"github.com/radio-control/psc/internal/radio"
)

// waitForState polls until the radio's controller reaches want, failing the
// test after a bounded wait. Used when confirms travel through the pump.
func waitForState(t *testing.T, manager *radio.Manager, id string, want ps.State) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if radioState(t, manager, id) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for state %s, still %s", want, radioState(t, manager, id))
}

func TestHandleConfirmAppliesSleep(t *testing.T) {
	orch, manager, _ := newTestOrchestrator(t, nil)

	if err := orch.EnablePS(context.Background(), "radio-01"); err != nil {
		t.Fatalf("EnablePS() failed: %v", err)
	}

	if err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmSleep)); err != nil {
		t.Fatalf("HandleConfirm() failed: %v", err)
	}

	if got := radioState(t, manager, "radio-01"); got != ps.StateEnabled {
		t.Errorf("Expected state %s after sleep confirm, got %s", ps.StateEnabled, got)
	}
}

func TestHandleConfirmAppliesWakeup(t *testing.T) {
	orch, manager, _ := newTestOrchestrator(t, nil)
	walkToEnabled(t, orch, "radio-01")

	if err := orch.DisablePS(context.Background(), "radio-01"); err != nil {
		t.Fatalf("DisablePS() failed: %v", err)
	}

	if err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmWakeup)); err != nil {
		t.Fatalf("HandleConfirm() failed: %v", err)
	}

	if got := radioState(t, manager, "radio-01"); got != ps.StateNone {
		t.Errorf("Expected state %s after wakeup confirm, got %s", ps.StateNone, got)
	}
}

func TestHandleConfirmIgnoresStray(t *testing.T) {
	orch, manager, _ := newTestOrchestrator(t, nil)

	// A sleep confirm with nothing pending is tolerated without error.
	if err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmSleep)); err != nil {
		t.Fatalf("Stray sleep confirm should be ignored, got: %v", err)
	}
	if got := radioState(t, manager, "radio-01"); got != ps.StateNone {
		t.Errorf("Expected state %s, got %s", ps.StateNone, got)
	}

	// Same for a wakeup confirm while power save is established.
	walkToEnabled(t, orch, "radio-01")
	if err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmWakeup)); err != nil {
		t.Fatalf("Stray wakeup confirm should be ignored, got: %v", err)
	}
	if got := radioState(t, manager, "radio-01"); got != ps.StateEnabled {
		t.Errorf("Expected state %s, got %s", ps.StateEnabled, got)
	}
}

func TestHandleConfirmIgnoresDuplicate(t *testing.T) {
	orch, manager, _ := newTestOrchestrator(t, nil)
	walkToEnabled(t, orch, "radio-01")

	// The firmware occasionally re-sends a confirm; the duplicate must not
	// disturb the committed state.
	if err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmSleep)); err != nil {
		t.Fatalf("Duplicate sleep confirm should be ignored, got: %v", err)
	}
	if got := radioState(t, manager, "radio-01"); got != ps.StateEnabled {
		t.Errorf("Expected state %s, got %s", ps.StateEnabled, got)
	}
}

func TestHandleConfirmUnknownType(t *testing.T) {
	orch, manager, _ := newTestOrchestrator(t, nil)

	if err := orch.EnablePS(context.Background(), "radio-01"); err != nil {
		t.Fatalf("EnablePS() failed: %v", err)
	}

	err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmType(0xFF)))
	if !errors.Is(err, ps.ErrUnknownConfirm) {
		t.Errorf("Expected ErrUnknownConfirm, got: %v", err)
	}

	if got := radioState(t, manager, "radio-01"); got != ps.StateEnableRequestSent {
		t.Errorf("Expected state unchanged at %s, got %s", ps.StateEnableRequestSent, got)
	}
}

func TestHandleConfirmTruncatedFrame(t *testing.T) {
	orch, manager, _ := newTestOrchestrator(t, nil)

	err := orch.HandleConfirm("radio-01", []byte{0x01, 0x02, 0x03})
	if !errors.Is(err, ps.ErrFrameTruncated) {
		t.Errorf("Expected ErrFrameTruncated, got: %v", err)
	}

	if got := radioState(t, manager, "radio-01"); got != ps.StateNone {
		t.Errorf("Expected state unchanged at %s, got %s", ps.StateNone, got)
	}
}

func TestHandleConfirmUnknownRadio(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, nil)

	err := orch.HandleConfirm("radio-99", ps.NewConfirmFrame(ps.ConfirmSleep))
	if err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestHandleConfirmNoRadioManager(t *testing.T) {
	orch := &Orchestrator{config: testCommandConfig()}

	err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmSleep))
	if err != fw.ErrUnavailable {
		t.Errorf("Expected ErrUnavailable, got: %v", err)
	}
}

func TestConfirmMetrics(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, nil)
	m := metrics.New()
	orch.SetMetrics(m)

	ctx := context.Background()
	if err := orch.EnablePS(ctx, "radio-01"); err != nil {
		t.Fatalf("EnablePS() failed: %v", err)
	}

	// One applied, one ignored duplicate, one unknown, one truncated.
	if err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmSleep)); err != nil {
		t.Fatalf("HandleConfirm() failed: %v", err)
	}
	if err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmSleep)); err != nil {
		t.Fatalf("HandleConfirm() failed: %v", err)
	}
	if err := orch.HandleConfirm("radio-01", ps.NewConfirmFrame(ps.ConfirmType(0xFF))); err == nil {
		t.Fatal("Expected error for unknown confirm type")
	}
	if err := orch.HandleConfirm("radio-01", []byte{0x00}); err == nil {
		t.Fatal("Expected error for truncated frame")
	}

	// Four distinct result labels must be present.
	count, err := testutil.GatherAndCount(m.Registry(), "psc_ps_confirms_total")
	if err != nil {
		t.Fatalf("GatherAndCount() failed: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 confirm result series, got %d", count)
	}
}

func TestCommandMetrics(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, nil)
	m := metrics.New()
	orch.SetMetrics(m)

	ctx := context.Background()
	if err := orch.EnablePS(ctx, "radio-01"); err != nil {
		t.Fatalf("EnablePS() failed: %v", err)
	}
	if _, err := orch.PSStatus(ctx, "radio-01"); err != nil {
		t.Fatalf("PSStatus() failed: %v", err)
	}

	count, err := testutil.GatherAndCount(m.Registry(), "psc_command_duration_seconds")
	if err != nil {
		t.Fatalf("GatherAndCount() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 command duration series, got %d", count)
	}
}

func TestConfirmPumpEndToEnd(t *testing.T) {
	orch, manager, dev := newTestOrchestrator(t, nil)
	manager.SetConfirmHandler(orch)

	ctx := context.Background()

	// Full negotiation cycle with confirms travelling through the pump.
	if err := orch.EnablePS(ctx, "radio-01"); err != nil {
		t.Fatalf("EnablePS() failed: %v", err)
	}
	dev.InjectConfirm(ps.ConfirmSleep)
	waitForState(t, manager, "radio-01", ps.StateEnabled)

	if err := orch.DisablePS(ctx, "radio-01"); err != nil {
		t.Fatalf("DisablePS() failed: %v", err)
	}
	dev.InjectConfirm(ps.ConfirmWakeup)
	waitForState(t, manager, "radio-01", ps.StateNone)
}

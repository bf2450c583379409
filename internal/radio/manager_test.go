package radio

import (
	"context"
	"testing"
	"time"

	"github.com/radio-control/psc/internal/fw/fake"
	"github.com/radio-control/psc/internal/ps"
)

// recordingHandler captures forwarded confirmation frames for assertions.
type recordingHandler struct {
	frames chan handledFrame
}

type handledFrame struct {
	radioID string
	frame   []byte
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{frames: make(chan handledFrame, 16)}
}

func (h *recordingHandler) HandleConfirm(radioID string, frame []byte) error {
	h.frames <- handledFrame{radioID: radioID, frame: frame}
	return nil
}

func newTestRadio(id string) (*Radio, *fake.Device) {
	dev := fake.NewDevice(id)
	return &Radio{
		ID:         id,
		Model:      "fake",
		Controller: ps.NewController(dev, nil),
		Device:     dev,
		Params:     ps.DefaultParams(),
	}, dev
}

func TestManagerAddAndGet(t *testing.T) {
	m := NewManager()
	defer m.Close()

	r, _ := newTestRadio("radio-01")
	if err := m.Add(r); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, err := m.Get("radio-01")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.ID != "radio-01" || got.Model != "fake" {
		t.Errorf("Expected radio-01/fake, got %s/%s", got.ID, got.Model)
	}

	if _, err := m.Get("missing"); err == nil {
		t.Error("Expected error for unknown radio ID")
	}
}

func TestManagerAddValidation(t *testing.T) {
	m := NewManager()
	defer m.Close()

	if err := m.Add(nil); err == nil {
		t.Error("Expected error adding nil radio")
	}
	if err := m.Add(&Radio{Controller: ps.NewController(fake.NewDevice("x"), nil)}); err == nil {
		t.Error("Expected error adding radio without ID")
	}
	if err := m.Add(&Radio{ID: "radio-01"}); err == nil {
		t.Error("Expected error adding radio without controller")
	}
}

func TestManagerAddDuplicate(t *testing.T) {
	m := NewManager()
	defer m.Close()

	r1, _ := newTestRadio("radio-01")
	if err := m.Add(r1); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	r2, _ := newTestRadio("radio-01")
	if err := m.Add(r2); err == nil {
		t.Error("Expected error adding duplicate radio ID")
	}
}

func TestManagerListSortedByID(t *testing.T) {
	m := NewManager()
	defer m.Close()

	for _, id := range []string{"radio-03", "radio-01", "radio-02"} {
		r, _ := newTestRadio(id)
		if err := m.Add(r); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}

	items := m.List()
	if len(items) != 3 {
		t.Fatalf("Expected 3 radios, got %d", len(items))
	}
	want := []string{"radio-01", "radio-02", "radio-03"}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("Expected %s at position %d, got %s", id, i, items[i].ID)
		}
	}

	ids := m.IDs()
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("Expected ID %s at position %d, got %s", id, i, ids[i])
		}
	}
}

func TestManagerSnapshotReflectsControllerState(t *testing.T) {
	m := NewManager()
	defer m.Close()

	r, _ := newTestRadio("radio-01")
	if err := m.Add(r); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	snap, err := m.Snapshot("radio-01")
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if snap.PSState != ps.StateNone {
		t.Errorf("Expected initial state PS_NONE, got %s", snap.PSState)
	}
	if snap.Status != "online" {
		t.Errorf("Expected default status online, got %s", snap.Status)
	}
	if !snap.PSParams.Enabled {
		t.Error("Expected default params to be carried into snapshot")
	}

	if err := r.Controller.Enable(context.Background()); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	snap, _ = m.Snapshot("radio-01")
	if snap.PSState != ps.StateEnableRequestSent {
		t.Errorf("Expected PS_ENABLE_REQ_SENT after enable, got %s", snap.PSState)
	}

	if _, err := m.Snapshot("missing"); err == nil {
		t.Error("Expected error for unknown radio ID")
	}
}

func TestManagerUpdateStatus(t *testing.T) {
	m := NewManager()
	defer m.Close()

	r, _ := newTestRadio("radio-01")
	if err := m.Add(r); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := m.UpdateStatus("radio-01", "degraded"); err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}
	snap, _ := m.Snapshot("radio-01")
	if snap.Status != "degraded" {
		t.Errorf("Expected status degraded, got %s", snap.Status)
	}

	if err := m.UpdateStatus("missing", "online"); err == nil {
		t.Error("Expected error updating unknown radio")
	}
}

func TestManagerPumpForwardsConfirms(t *testing.T) {
	m := NewManager()
	defer m.Close()

	h := newRecordingHandler()
	m.SetConfirmHandler(h)

	r, dev := newTestRadio("radio-01")
	if err := m.Add(r); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	dev.InjectConfirm(ps.ConfirmSleep)

	select {
	case got := <-h.frames:
		if got.radioID != "radio-01" {
			t.Errorf("Expected frame for radio-01, got %s", got.radioID)
		}
		ct, err := ps.DecodeConfirmType(got.frame)
		if err != nil {
			t.Fatalf("DecodeConfirmType() failed: %v", err)
		}
		if ct != ps.ConfirmSleep {
			t.Errorf("Expected SLEEP_CONFIRM, got %s", ct)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected pump to forward the injected confirmation")
	}
}

func TestManagerPumpWithoutHandler(t *testing.T) {
	m := NewManager()

	r, dev := newTestRadio("radio-01")
	if err := m.Add(r); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	// No handler registered: frames are dropped, nothing blocks.
	dev.InjectConfirm(ps.ConfirmSleep)
	dev.InjectConfirm(ps.ConfirmWakeup)

	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
}

func TestManagerMarksOfflineWhenStreamEnds(t *testing.T) {
	m := NewManager()
	defer m.Close()

	r, dev := newTestRadio("radio-01")
	if err := m.Add(r); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Device close failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := m.Snapshot("radio-01")
		if err != nil {
			t.Fatalf("Snapshot() failed: %v", err)
		}
		if snap.Status == "offline" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected radio to go offline after stream end, still %s", snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerRemoveClosesDevice(t *testing.T) {
	m := NewManager()
	defer m.Close()

	r, dev := newTestRadio("radio-01")
	if err := m.Add(r); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := m.Remove("radio-01"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := m.Get("radio-01"); err == nil {
		t.Error("Expected radio to be gone after remove")
	}
	if err := dev.SendPSRequest(context.Background(), true); err == nil {
		t.Error("Expected device to be closed after remove")
	}

	if err := m.Remove("radio-01"); err == nil {
		t.Error("Expected error removing unknown radio")
	}
}

func TestManagerCloseStopsPumpsAndRejectsAdds(t *testing.T) {
	m := NewManager()

	r1, _ := newTestRadio("radio-01")
	r2, _ := newTestRadio("radio-02")
	if err := m.Add(r1); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := m.Add(r2); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Expected second close to be a no-op, got %v", err)
	}

	r3, _ := newTestRadio("radio-03")
	if err := m.Add(r3); err == nil {
		t.Error("Expected add after close to be rejected")
	}
}

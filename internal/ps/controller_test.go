package ps

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// scriptedTransport records every send attempt and fails on demand.
type scriptedTransport struct {
	mu    sync.Mutex
	calls []bool        // the enable flag of each attempt, in order
	fail  map[int]error // attempt index -> error to return
}

func (s *scriptedTransport) SendPSRequest(ctx context.Context, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.calls)
	s.calls = append(s.calls, enable)
	if err, ok := s.fail[idx]; ok {
		return err
	}
	return nil
}

func (s *scriptedTransport) sent() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.calls))
	copy(out, s.calls)
	return out
}

// recordingObserver captures transitions and rejections for assertions.
type recordingObserver struct {
	mu          sync.Mutex
	transitions [][2]State
	rejections  []Op
}

func (r *recordingObserver) StateChanged(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]State{from, to})
}

func (r *recordingObserver) RequestRejected(op Op, current State, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections = append(r.rejections, op)
}

func newTestController(states ...State) (*Controller, *scriptedTransport, *recordingObserver) {
	tr := &scriptedTransport{}
	obs := &recordingObserver{}
	c := NewController(tr, obs)
	if len(states) > 0 {
		c.state = states[0]
	}
	return c, tr, obs
}

func TestEnableFromNone(t *testing.T) {
	c, tr, obs := newTestController()

	if err := c.Enable(context.Background()); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if got := c.State(); got != StateEnableRequestSent {
		t.Errorf("Expected PS_ENABLE_REQ_SENT, got %v", got)
	}
	if sent := tr.sent(); len(sent) != 1 || !sent[0] {
		t.Errorf("Expected one enable send, got %v", sent)
	}
	if len(obs.transitions) != 1 || obs.transitions[0] != [2]State{StateNone, StateEnableRequestSent} {
		t.Errorf("Expected transition PS_NONE => PS_ENABLE_REQ_SENT, got %v", obs.transitions)
	}
}

func TestEnableRejectedOutsideNone(t *testing.T) {
	// Enable only succeeds from PS_NONE; every other state must refuse
	// without touching the transport.
	for _, state := range []State{StateDisableRequestSent, StateEnableRequestSent, StateEnabled} {
		t.Run(state.String(), func(t *testing.T) {
			c, tr, obs := newTestController(state)

			err := c.Enable(context.Background())
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Expected ErrInvalidTransition, got %v", err)
			}
			var terr *TransitionError
			if !errors.As(err, &terr) {
				t.Fatalf("Expected TransitionError, got %T", err)
			}
			if terr.Current != state {
				t.Errorf("Expected current state %v in error, got %v", state, terr.Current)
			}
			if got := c.State(); got != state {
				t.Errorf("Expected state unchanged at %v, got %v", state, got)
			}
			if sent := tr.sent(); len(sent) != 0 {
				t.Errorf("Expected zero transport calls, got %v", sent)
			}
			if len(obs.rejections) != 1 || obs.rejections[0] != OpEnable {
				t.Errorf("Expected one enable rejection, got %v", obs.rejections)
			}
		})
	}
}

func TestDisableFromEnabled(t *testing.T) {
	c, tr, _ := newTestController(StateEnabled)

	if err := c.Disable(context.Background()); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	if got := c.State(); got != StateDisableRequestSent {
		t.Errorf("Expected PS_DISABLE_REQ_SENT, got %v", got)
	}
	if sent := tr.sent(); len(sent) != 1 || sent[0] {
		t.Errorf("Expected one disable send, got %v", sent)
	}
}

func TestDisableRejectedOutsideEnabled(t *testing.T) {
	for _, state := range []State{StateNone, StateDisableRequestSent, StateEnableRequestSent} {
		t.Run(state.String(), func(t *testing.T) {
			c, tr, _ := newTestController(state)

			err := c.Disable(context.Background())
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Expected ErrInvalidTransition, got %v", err)
			}
			if got := c.State(); got != state {
				t.Errorf("Expected state unchanged at %v, got %v", state, got)
			}
			if sent := tr.sent(); len(sent) != 0 {
				t.Errorf("Expected zero transport calls, got %v", sent)
			}
		})
	}
}

func TestEnableTransportFailureLeavesStateUnchanged(t *testing.T) {
	sendErr := errors.New("device write failed")
	c, tr, obs := newTestController()
	tr.fail = map[int]error{0: sendErr}

	err := c.Enable(context.Background())
	if !errors.Is(err, sendErr) {
		t.Errorf("Expected transport error passed through, got %v", err)
	}
	if got := c.State(); got != StateNone {
		t.Errorf("Expected state to stay PS_NONE, got %v", got)
	}
	if len(obs.transitions) != 0 {
		t.Errorf("Expected no transitions, got %v", obs.transitions)
	}
}

func TestEnableConfirmCycle(t *testing.T) {
	c, _, obs := newTestController()
	ctx := context.Background()

	if err := c.Enable(ctx); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if err := c.HandleConfirm(NewConfirmFrame(ConfirmSleep)); err != nil {
		t.Fatalf("HandleConfirm failed: %v", err)
	}
	if got := c.State(); got != StateEnabled {
		t.Errorf("Expected PS_ENABLED, got %v", got)
	}

	// A wakeup confirm while enabled is recognized but mismatched: ignored,
	// no regression to PS_NONE.
	if err := c.HandleConfirm(NewConfirmFrame(ConfirmWakeup)); err != nil {
		t.Fatalf("Expected stray confirm to be ignored, got %v", err)
	}
	if got := c.State(); got != StateEnabled {
		t.Errorf("Expected PS_ENABLED after stray wakeup confirm, got %v", got)
	}

	if err := c.Disable(ctx); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	if err := c.HandleConfirm(NewConfirmFrame(ConfirmWakeup)); err != nil {
		t.Fatalf("HandleConfirm failed: %v", err)
	}
	if got := c.State(); got != StateNone {
		t.Errorf("Expected PS_NONE, got %v", got)
	}

	expected := [][2]State{
		{StateNone, StateEnableRequestSent},
		{StateEnableRequestSent, StateEnabled},
		{StateEnabled, StateDisableRequestSent},
		{StateDisableRequestSent, StateNone},
	}
	if len(obs.transitions) != len(expected) {
		t.Fatalf("Expected %d transitions, got %d: %v", len(expected), len(obs.transitions), obs.transitions)
	}
	for i, want := range expected {
		if obs.transitions[i] != want {
			t.Errorf("Transition %d: expected %v => %v, got %v => %v",
				i, want[0], want[1], obs.transitions[i][0], obs.transitions[i][1])
		}
	}
}

func TestMismatchedConfirmIgnored(t *testing.T) {
	c, _, obs := newTestController()

	if err := c.Enable(context.Background()); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}

	// Wakeup confirm while an enable is pending: recognized kind, wrong
	// state. Ignored without error.
	if err := c.HandleConfirm(NewConfirmFrame(ConfirmWakeup)); err != nil {
		t.Fatalf("Expected mismatched confirm to be ignored, got %v", err)
	}
	if got := c.State(); got != StateEnableRequestSent {
		t.Errorf("Expected PS_ENABLE_REQ_SENT, got %v", got)
	}
	if len(obs.rejections) != 0 {
		t.Errorf("Expected no rejections for a mismatched confirm, got %v", obs.rejections)
	}
}

func TestDuplicateConfirmIgnored(t *testing.T) {
	c, _, _ := newTestController()
	ctx := context.Background()

	if err := c.Enable(ctx); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if err := c.HandleConfirm(NewConfirmFrame(ConfirmSleep)); err != nil {
		t.Fatalf("HandleConfirm failed: %v", err)
	}
	// Firmware retransmit of the same confirm.
	if err := c.HandleConfirm(NewConfirmFrame(ConfirmSleep)); err != nil {
		t.Fatalf("Expected duplicate confirm to be ignored, got %v", err)
	}
	if got := c.State(); got != StateEnabled {
		t.Errorf("Expected PS_ENABLED, got %v", got)
	}
}

func TestUnrecognizedConfirm(t *testing.T) {
	for _, state := range []State{StateNone, StateDisableRequestSent, StateEnableRequestSent, StateEnabled} {
		t.Run(state.String(), func(t *testing.T) {
			c, _, obs := newTestController(state)

			err := c.HandleConfirm(NewConfirmFrame(ConfirmType(0xFFFF)))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, ErrUnknownConfirm) {
				t.Errorf("Expected ErrUnknownConfirm, got %v", err)
			}
			var cerr *ConfirmError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected ConfirmError, got %T", err)
			}
			if cerr.Raw != 0xFFFF {
				t.Errorf("Expected raw value 0xffff, got %#x", cerr.Raw)
			}
			if cerr.Current != state {
				t.Errorf("Expected current state %v in error, got %v", state, cerr.Current)
			}
			if got := c.State(); got != state {
				t.Errorf("Expected state unchanged at %v, got %v", state, got)
			}
			if len(obs.rejections) != 1 || obs.rejections[0] != OpConfirm {
				t.Errorf("Expected one confirm rejection, got %v", obs.rejections)
			}
		})
	}
}

func TestTruncatedConfirmFrame(t *testing.T) {
	c, _, _ := newTestController(StateEnableRequestSent)

	err := c.HandleConfirm(make([]byte, 5))
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("Expected ErrFrameTruncated, got %v", err)
	}
	if got := c.State(); got != StateEnableRequestSent {
		t.Errorf("Expected state unchanged, got %v", got)
	}
}

func TestReconfigureUAPSDFromNoneIsSilent(t *testing.T) {
	c, tr, obs := newTestController()

	if err := c.ReconfigureUAPSD(context.Background()); err != nil {
		t.Fatalf("Expected silent no-op, got %v", err)
	}
	if sent := tr.sent(); len(sent) != 0 {
		t.Errorf("Expected zero transport calls, got %v", sent)
	}
	if len(obs.rejections) != 0 {
		t.Errorf("Expected no rejections for the silent no-op, got %v", obs.rejections)
	}
}

func TestReconfigureUAPSDFromEnabled(t *testing.T) {
	c, tr, _ := newTestController(StateEnabled)

	if err := c.ReconfigureUAPSD(context.Background()); err != nil {
		t.Fatalf("ReconfigureUAPSD failed: %v", err)
	}

	sent := tr.sent()
	if len(sent) != 2 {
		t.Fatalf("Expected exactly two transport calls, got %d", len(sent))
	}
	if sent[0] != false || sent[1] != true {
		t.Errorf("Expected disable then enable, got %v", sent)
	}
	if got := c.State(); got != StateEnabled {
		t.Errorf("Expected state to remain PS_ENABLED, got %v", got)
	}
}

func TestReconfigureUAPSDAbortsAfterFirstFailure(t *testing.T) {
	sendErr := errors.New("device busy")
	c, tr, _ := newTestController(StateEnabled)
	tr.fail = map[int]error{0: sendErr}

	err := c.ReconfigureUAPSD(context.Background())
	if !errors.Is(err, sendErr) {
		t.Errorf("Expected first send's error, got %v", err)
	}
	if sent := tr.sent(); len(sent) != 1 || sent[0] != false {
		t.Errorf("Expected only the failed disable attempt, got %v", sent)
	}
	if got := c.State(); got != StateEnabled {
		t.Errorf("Expected state to remain PS_ENABLED, got %v", got)
	}
}

func TestReconfigureUAPSDSecondSendFailure(t *testing.T) {
	sendErr := errors.New("device busy")
	c, tr, _ := newTestController(StateEnabled)
	tr.fail = map[int]error{1: sendErr}

	err := c.ReconfigureUAPSD(context.Background())
	if !errors.Is(err, sendErr) {
		t.Errorf("Expected second send's error, got %v", err)
	}
	if sent := tr.sent(); len(sent) != 2 || sent[0] != false || sent[1] != true {
		t.Errorf("Expected disable then failed enable attempt, got %v", sent)
	}
}

func TestDoubleEnable(t *testing.T) {
	c, tr, _ := newTestController()
	ctx := context.Background()

	if err := c.Enable(ctx); err != nil {
		t.Fatalf("First enable failed: %v", err)
	}

	err := c.Enable(ctx)
	if err == nil {
		t.Fatal("Expected second enable to fail, got nil")
	}
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected TransitionError, got %T", err)
	}
	if terr.Current != StateEnableRequestSent {
		t.Errorf("Expected current state PS_ENABLE_REQ_SENT, got %v", terr.Current)
	}
	if sent := tr.sent(); len(sent) != 1 {
		t.Errorf("Expected a single transport call, got %v", sent)
	}
}

func TestNilObserverDefaultsToNop(t *testing.T) {
	c := NewController(&scriptedTransport{}, nil)
	if err := c.Enable(context.Background()); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if got := c.State(); got != StateEnableRequestSent {
		t.Errorf("Expected PS_ENABLE_REQ_SENT, got %v", got)
	}
}

func TestConcurrentOperationsKeepStateWellDefined(t *testing.T) {
	c, _, _ := newTestController()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			switch n % 4 {
			case 0:
				c.Enable(context.Background())
			case 1:
				c.HandleConfirm(NewConfirmFrame(ConfirmSleep))
			case 2:
				c.Disable(context.Background())
			case 3:
				c.HandleConfirm(NewConfirmFrame(ConfirmWakeup))
			}
		}(i)
	}
	wg.Wait()

	if got := c.State(); !got.Valid() {
		t.Errorf("Expected a well-defined state after concurrent operations, got %v", got)
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	err := &TransitionError{Op: OpEnable, Current: StateEnableRequestSent}
	expected := "cannot accept enable request in PS_ENABLE_REQ_SENT state"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestConfirmErrorMessage(t *testing.T) {
	err := &ConfirmError{Raw: 0xFFFF, Current: StateEnabled}
	expected := "invalid PS confirm type 0xffff in PS_ENABLED state"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

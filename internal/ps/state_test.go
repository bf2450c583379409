package ps

import (
	"encoding/json"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected string
	}{
		{name: "none", state: StateNone, expected: "PS_NONE"},
		{name: "disable request sent", state: StateDisableRequestSent, expected: "PS_DISABLE_REQ_SENT"},
		{name: "enable request sent", state: StateEnableRequestSent, expected: "PS_ENABLE_REQ_SENT"},
		{name: "enabled", state: StateEnabled, expected: "PS_ENABLED"},
		{name: "out of range high", state: State(99), expected: "INVALID_STATE"},
		{name: "out of range negative", state: State(-1), expected: "INVALID_STATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestStateValid(t *testing.T) {
	for s := StateNone; s <= StateEnabled; s++ {
		if !s.Valid() {
			t.Errorf("Expected state %v to be valid", s)
		}
	}
	if State(4).Valid() {
		t.Error("Expected state 4 to be invalid")
	}
	if State(-1).Valid() {
		t.Error("Expected state -1 to be invalid")
	}
}

func TestStateMarshalJSON(t *testing.T) {
	data, err := json.Marshal(StateEnableRequestSent)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"PS_ENABLE_REQ_SENT"` {
		t.Errorf("Expected %q, got %q", `"PS_ENABLE_REQ_SENT"`, string(data))
	}

	// States embed as labels inside structs too.
	wrapper := struct {
		State State `json:"state"`
	}{State: StateEnabled}
	data, err = json.Marshal(wrapper)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"state":"PS_ENABLED"}` {
		t.Errorf("Expected %q, got %q", `{"state":"PS_ENABLED"}`, string(data))
	}
}

package ps

// State is the power-save negotiation state of a single radio link.
type State int

// Negotiation states. A request-sent state means the host dispatched a
// request and is waiting for the firmware's confirmation.
const (
	StateNone State = iota
	StateDisableRequestSent
	StateEnableRequestSent
	StateEnabled
)

// String returns the display label for s. The mapping is total: values
// outside the enumeration yield INVALID_STATE instead of panicking.
func (s State) String() string {
	switch s {
	case StateNone:
		return "PS_NONE"
	case StateDisableRequestSent:
		return "PS_DISABLE_REQ_SENT"
	case StateEnableRequestSent:
		return "PS_ENABLE_REQ_SENT"
	case StateEnabled:
		return "PS_ENABLED"
	default:
		return "INVALID_STATE"
	}
}

// Valid reports whether s is one of the four negotiation states.
func (s State) Valid() bool {
	return s >= StateNone && s <= StateEnabled
}

// MarshalJSON encodes the state as its display label.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

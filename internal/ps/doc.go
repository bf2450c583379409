// Package ps implements the power-save negotiation state machine between the
// host and an attached radio firmware.
//
// A Controller owns the negotiation state for one radio link: it serializes
// enable/disable requests to the firmware through a Transport, and advances
// state when the firmware's asynchronous confirmation frames arrive. Requests
// and confirmations that arrive in an incompatible state are rejected or
// ignored per the transition table; at most one request is outstanding at any
// time.
//
// State is never persisted: every Controller starts at StateNone regardless of
// the radio's actual condition, and a request whose confirmation is lost
// leaves the Controller in the request-sent state indefinitely (there is no
// watchdog).
//
// Architecture References:
//   - Architecture §4: PS state machine and transition table
//   - Firmware ICD §3: confirmation frame layout and confirm type codes
package ps

// Package command implements the command orchestrator for the Power-Save Controller.
//
// The orchestrator guards radio lookup, applies per-operation timeouts, drives
// the per-radio PS controllers, normalizes firmware errors, emits events to
// TelemetryHub, and writes audit logs. It also sinks the confirmation pump:
// inbound firmware confirms land here and are applied to the owning state
// machine.
//
// Architecture References:
//   - Architecture §4: PS state machine operations
//   - Architecture §8.5: Error code normalization
//   - Architecture §8.6: Audit record schema
package command

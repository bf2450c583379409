// Package metrics implements Prometheus instrumentation for the Power-Save Controller.
//
// All series live in a private registry exported on /metrics. Transition,
// rejection and confirmation counters carry a radio_id label, the state gauge
// mirrors each radio's negotiation state numerically, and command latency is
// observed per action.
//
// Architecture References:
//   - Architecture §7.2: Operational metrics
//   - Telemetry SSE §4: Observability surfaces
package metrics

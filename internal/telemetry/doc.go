// Package telemetry implements the telemetry hub for the Power-Save Controller.
//
// The telemetry hub fans out power-save transition events to all SSE clients
// and buffers the last N events per radio for reconnection support using
// Last-Event-ID headers.
//
// Architecture References:
//   - Telemetry SSE §2: Event streaming protocol
//   - Architecture §7: Power-save observability events
package telemetry

// Package api implements the HTTP API gateway for the Power-Save Controller.
//
// The API gateway exposes northbound HTTP/JSON power-save commands, the SSE
// telemetry stream and the Prometheus exposition endpoint, translating HTTP
// requests into orchestrator calls.
//
// Architecture References:
//   - OpenAPI §2: HTTP/JSON API specification
//   - Telemetry SSE §1: Server-Sent Events protocol
package api

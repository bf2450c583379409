// Package audit implements the audit logger for the Power-Save Controller.
//
// The audit logger provides append-only action logging with user, radioId,
// parameters, outcome, latency and correlation ID for compliance and
// debugging. Files rotate by size with bounded retention.
//
// Architecture References:
//   - Architecture §8.6: Audit log schema
//   - Architecture §14.1: Privacy and compliance requirements
package audit

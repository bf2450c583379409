// Package fw defines the firmware-facing device contract for the Power-Save
// Controller.
//
// A Device joins the request transport the PS controller sends through with
// the stream of asynchronous confirmation frames the firmware answers on.
// Firmware errors are normalized to BUSY, UNAVAILABLE or INTERNAL with
// table-driven token matching so callers never branch on vendor message text.
//
// Architecture References:
//   - Architecture §5: device contract and confirmation routing
//   - Firmware ICD §2: error token normalization
package fw

// Package suspend bridges host suspend/resume to radio power-save state.
//
// The watcher holds a systemd-logind delay inhibitor and listens for
// PrepareForSleep. Before the host sleeps it disables power save on every
// radio currently in PS_ENABLED, remembering the set, then releases the
// inhibitor so the sleep can proceed. On resume it re-takes the inhibitor
// and re-enables exactly the remembered radios.
//
// The component is optional: the daemon runs without a system bus when the
// suspend config flag is off or logind is absent.
//
// Architecture References:
//   - Architecture §6: host power coupling
package suspend

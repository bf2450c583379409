// Package radio implements the radio inventory for the Power-Save Controller.
//
// The manager holds one PS controller and one firmware device per radio and
// runs a confirmation pump goroutine per radio, forwarding inbound firmware
// frames to the registered confirmation handler in arrival order.
//
// Architecture References:
//   - Architecture §5: device contract and confirmation routing
//   - Architecture §6: radio lifecycle and shutdown ordering
package radio

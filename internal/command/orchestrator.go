package command

import (
	"context"
	"errors"
	"time"

	"github.com/radio-control/psc/internal/config"
	"github.com/radio-control/psc/internal/fw"
	"github.com/radio-control/psc/internal/metrics"
	"github.com/radio-control/psc/internal/ps"
	"github.com/radio-control/psc/internal/radio"
	"github.com/radio-control/psc/internal/telemetry"
)

// Orchestrator routes validated API intents to the per-radio PS controllers.
type Orchestrator struct {
	// Radio inventory
	radioManager RadioManager

	// Telemetry hub for event publishing
	telemetryHub EventPublisher

	// Per-operation timeout classes
	config *config.CommandConfig

	// Audit logger (wired after construction)
	auditLogger AuditLogger

	// Operational metrics (wired after construction)
	metrics *metrics.Metrics
}

// Compile-time assertion that radio.Manager implements RadioManager
var _ RadioManager = (*radio.Manager)(nil)

// Compile-time assertion that telemetry.Hub implements EventPublisher
var _ EventPublisher = (*telemetry.Hub)(nil)

// Compile-time assertion that Orchestrator implements OrchestratorPort
var _ OrchestratorPort = (*Orchestrator)(nil)

// Compile-time assertion that Orchestrator implements radio.ConfirmHandler
var _ radio.ConfirmHandler = (*Orchestrator)(nil)

// AuditLogger interface for writing audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action string, radioID string, result string, latency time.Duration)
}

// NewOrchestrator creates a new command orchestrator.
func NewOrchestrator(telemetryHub EventPublisher, commandConfig *config.CommandConfig, radioManager RadioManager) *Orchestrator {
	return &Orchestrator{
		telemetryHub: telemetryHub,
		config:       commandConfig,
		radioManager: radioManager,
	}
}

// EnablePS requests power save for one radio. The request is accepted only
// while no negotiation is pending; the committed transition arrives later via
// the firmware's sleep confirm.
func (o *Orchestrator) EnablePS(ctx context.Context, radioID string) error {
	start := time.Now()
	defer func() { o.observeCommand("enablePowerSave", time.Since(start)) }()

	// Ensure radio exists via radio manager
	if o.radioManager == nil {
		o.logAudit(ctx, "enablePowerSave", radioID, "UNAVAILABLE", time.Since(start))
		return fw.ErrUnavailable
	}
	r, err := o.radioManager.Get(radioID)
	if err != nil {
		o.logAudit(ctx, "enablePowerSave", radioID, "NOT_FOUND", time.Since(start))
		return ErrNotFound
	}

	// Execute command with timeout
	ctx, cancel := context.WithTimeout(ctx, o.config.EnableTimeout())
	defer cancel()

	err = r.Controller.Enable(ctx)
	latency := time.Since(start)

	if err != nil {
		// State machine refusal: the reject observer has already published
		// the ps_reject event, so only the audit record is written here.
		if errors.Is(err, ps.ErrInvalidTransition) {
			o.logAudit(ctx, "enablePowerSave", radioID, "INVALID_TRANSITION", latency)
			return err
		}

		// Map device error to normalized code
		normalizedErr := fw.NormalizeFirmwareErrorForModel(err, nil, r.Model)
		o.logAudit(ctx, "enablePowerSave", radioID, "ERROR", latency)

		// Publish fault event
		o.publishFaultEvent(radioID, normalizedErr, "Failed to enable power save")

		return normalizedErr
	}

	// Log successful action
	o.logAudit(ctx, "enablePowerSave", radioID, "SUCCESS", latency)

	return nil
}

// DisablePS requests leaving power save for one radio. The request is
// accepted only while power save is established; the committed transition
// arrives later via the firmware's wakeup confirm.
func (o *Orchestrator) DisablePS(ctx context.Context, radioID string) error {
	start := time.Now()
	defer func() { o.observeCommand("disablePowerSave", time.Since(start)) }()

	// Ensure radio exists via radio manager
	if o.radioManager == nil {
		o.logAudit(ctx, "disablePowerSave", radioID, "UNAVAILABLE", time.Since(start))
		return fw.ErrUnavailable
	}
	r, err := o.radioManager.Get(radioID)
	if err != nil {
		o.logAudit(ctx, "disablePowerSave", radioID, "NOT_FOUND", time.Since(start))
		return ErrNotFound
	}

	// Execute command with timeout
	ctx, cancel := context.WithTimeout(ctx, o.config.DisableTimeout())
	defer cancel()

	err = r.Controller.Disable(ctx)
	latency := time.Since(start)

	if err != nil {
		// State machine refusal: the reject observer has already published
		// the ps_reject event, so only the audit record is written here.
		if errors.Is(err, ps.ErrInvalidTransition) {
			o.logAudit(ctx, "disablePowerSave", radioID, "INVALID_TRANSITION", latency)
			return err
		}

		// Map device error to normalized code
		normalizedErr := fw.NormalizeFirmwareErrorForModel(err, nil, r.Model)
		o.logAudit(ctx, "disablePowerSave", radioID, "ERROR", latency)

		// Publish fault event
		o.publishFaultEvent(radioID, normalizedErr, "Failed to disable power save")

		return normalizedErr
	}

	// Log successful action
	o.logAudit(ctx, "disablePowerSave", radioID, "SUCCESS", latency)

	return nil
}

// ReconfigureUAPSD re-asserts power save on one radio so the firmware picks
// up updated UAPSD parameters. Outside the established state the controller
// treats it as a no-op, which still audits as SUCCESS: the operation's
// contract is "make the firmware match the stored parameters", and an idle
// link already does.
func (o *Orchestrator) ReconfigureUAPSD(ctx context.Context, radioID string) error {
	start := time.Now()
	defer func() { o.observeCommand("reconfigureUAPSD", time.Since(start)) }()

	// Ensure radio exists via radio manager
	if o.radioManager == nil {
		o.logAudit(ctx, "reconfigureUAPSD", radioID, "UNAVAILABLE", time.Since(start))
		return fw.ErrUnavailable
	}
	r, err := o.radioManager.Get(radioID)
	if err != nil {
		o.logAudit(ctx, "reconfigureUAPSD", radioID, "NOT_FOUND", time.Since(start))
		return ErrNotFound
	}

	// Execute command with timeout
	ctx, cancel := context.WithTimeout(ctx, o.config.ReconfigureTimeout())
	defer cancel()

	err = r.Controller.ReconfigureUAPSD(ctx)
	latency := time.Since(start)

	if err != nil {
		// Map device error to normalized code
		normalizedErr := fw.NormalizeFirmwareErrorForModel(err, nil, r.Model)
		o.logAudit(ctx, "reconfigureUAPSD", radioID, "ERROR", latency)

		// Publish fault event
		o.publishFaultEvent(radioID, normalizedErr, "Failed to reconfigure UAPSD")

		return normalizedErr
	}

	// Log successful action
	o.logAudit(ctx, "reconfigureUAPSD", radioID, "SUCCESS", latency)

	return nil
}

// PSStatus retrieves the current power-save view of one radio.
func (o *Orchestrator) PSStatus(ctx context.Context, radioID string) (*PSStatus, error) {
	start := time.Now()
	defer func() { o.observeCommand("getPSStatus", time.Since(start)) }()

	// Ensure radio exists via radio manager
	if o.radioManager == nil {
		o.logAudit(ctx, "getPSStatus", radioID, "UNAVAILABLE", time.Since(start))
		return nil, fw.ErrUnavailable
	}
	r, err := o.radioManager.Get(radioID)
	if err != nil {
		o.logAudit(ctx, "getPSStatus", radioID, "NOT_FOUND", time.Since(start))
		return nil, ErrNotFound
	}

	status := &PSStatus{
		RadioID: radioID,
		State:   r.Controller.State(),
		Params:  r.Params,
	}

	// Log successful action
	o.logAudit(ctx, "getPSStatus", radioID, "SUCCESS", time.Since(start))

	return status, nil
}

// HandleConfirm applies one inbound confirmation frame to the owning radio's
// state machine and records the outcome. It implements radio.ConfirmHandler
// and runs on the manager's per-radio confirmation pump, which serializes
// frames, so the before/after state comparison observes this frame's effect.
func (o *Orchestrator) HandleConfirm(radioID string, frame []byte) error {
	if o.radioManager == nil {
		return fw.ErrUnavailable
	}
	r, err := o.radioManager.Get(radioID)
	if err != nil {
		return ErrNotFound
	}

	before := r.Controller.State()
	err = r.Controller.HandleConfirm(frame)
	if err != nil {
		result := metrics.ConfirmUnknown
		if errors.Is(err, ps.ErrFrameTruncated) {
			result = metrics.ConfirmInvalid
		}
		o.observeConfirm(radioID, result)

		// Publish confirm fault event
		o.publishConfirmFaultEvent(radioID, err)

		return err
	}

	if r.Controller.State() != before {
		o.observeConfirm(radioID, metrics.ConfirmApplied)
	} else {
		// Recognized confirm that matched no pending request; tolerated
		// as a duplicate or stray.
		o.observeConfirm(radioID, metrics.ConfirmIgnored)
	}

	return nil
}

// publishStateChangeEvent publishes a ps_state_change event.
func (o *Orchestrator) publishStateChangeEvent(radioID string, from, to ps.State) {
	if o.telemetryHub == nil {
		return // Skip if no telemetry hub
	}

	event := telemetry.Event{
		Type: "ps_state_change",
		Data: map[string]interface{}{
			"radioId": radioID,
			"from":    from.String(),
			"to":      to.String(),
			"ts":      time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := o.telemetryHub.PublishRadio(radioID, event); err != nil {
		// Publish fault event for telemetry failure
		o.publishFaultEvent(radioID, err, "Failed to publish state change event")
	}
}

// publishRejectEvent publishes a ps_reject event.
func (o *Orchestrator) publishRejectEvent(radioID string, op ps.Op, current ps.State, reason error) {
	if o.telemetryHub == nil {
		return // Skip if no telemetry hub
	}

	event := telemetry.Event{
		Type: "ps_reject",
		Data: map[string]interface{}{
			"radioId": radioID,
			"op":      string(op),
			"state":   current.String(),
			"reason":  errorCode(reason),
			"ts":      time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := o.telemetryHub.PublishRadio(radioID, event); err != nil {
		// Publish fault event for telemetry failure
		o.publishFaultEvent(radioID, err, "Failed to publish reject event")
	}
}

// publishConfirmFaultEvent publishes a ps_confirm_fault event for a frame the
// state machine could not interpret.
func (o *Orchestrator) publishConfirmFaultEvent(radioID string, confirmErr error) {
	if o.telemetryHub == nil {
		return // Skip if no telemetry hub
	}

	event := telemetry.Event{
		Type: "ps_confirm_fault",
		Data: map[string]interface{}{
			"radioId": radioID,
			"code":    errorCode(confirmErr),
			"message": confirmErr.Error(),
			"ts":      time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := o.telemetryHub.PublishRadio(radioID, event); err != nil {
		// A fault about a fault is dropped rather than recursing
		_ = err
	}
}

// publishFaultEvent publishes a fault event.
func (o *Orchestrator) publishFaultEvent(radioID string, faultErr error, message string) {
	if o.telemetryHub == nil {
		return // Skip if no telemetry hub
	}

	event := telemetry.Event{
		Type: "fault",
		Data: map[string]interface{}{
			"radioId": radioID,
			"code":    errorCode(faultErr),
			"message": message,
			"ts":      time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := o.telemetryHub.PublishRadio(radioID, event); err != nil {
		// A fault about a fault is dropped rather than recursing
		_ = err
	}
}

// logAudit logs an audit record for a command action.
func (o *Orchestrator) logAudit(ctx context.Context, action, radioID, result string, latency time.Duration) {
	if o.auditLogger != nil {
		o.auditLogger.LogAction(ctx, action, radioID, result, latency)
	}
}

// observeCommand records command latency when metrics are wired.
func (o *Orchestrator) observeCommand(action string, latency time.Duration) {
	if o.metrics != nil {
		o.metrics.ObserveCommand(action, latency)
	}
}

// observeConfirm records a confirmation outcome when metrics are wired.
func (o *Orchestrator) observeConfirm(radioID, result string) {
	if o.metrics != nil {
		o.metrics.ObserveConfirm(radioID, result)
	}
}

// SetAuditLogger sets the audit logger.
func (o *Orchestrator) SetAuditLogger(logger AuditLogger) {
	o.auditLogger = logger
}

// SetMetrics sets the operational metrics sink.
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) {
	o.metrics = m
}

// errorCode reduces a classified error to its normalized code for event
// payloads; unclassified errors pass through verbatim.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, code := range []error{
		ps.ErrInvalidTransition,
		ps.ErrUnknownConfirm,
		ps.ErrFrameTruncated,
		fw.ErrBusy,
		fw.ErrUnavailable,
		fw.ErrInternal,
	} {
		if errors.Is(err, code) {
			return code.Error()
		}
	}
	return err.Error()
}

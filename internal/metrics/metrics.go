package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radio-control/psc/internal/ps"
)

// Confirmation outcome labels for the confirms counter.
const (
	ConfirmApplied = "applied"
	ConfirmIgnored = "ignored"
	ConfirmUnknown = "unknown"
	ConfirmInvalid = "invalid"
)

// Metrics holds the Prometheus instrumentation for power-save operations.
// All series live in a private registry so tests and embedders never collide
// with the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	rejects     *prometheus.CounterVec
	confirms    *prometheus.CounterVec
	psState     *prometheus.GaugeVec
	cmdDuration *prometheus.HistogramVec
}

// New creates the metric vectors and registers them together with the
// standard Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psc",
			Subsystem: "ps",
			Name:      "transitions_total",
			Help:      "Committed power-save state transitions per radio.",
		}, []string{"radio_id", "from", "to"}),

		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psc",
			Subsystem: "ps",
			Name:      "rejects_total",
			Help:      "Power-save operations refused by the state machine per radio.",
		}, []string{"radio_id", "op", "state"}),

		confirms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psc",
			Subsystem: "ps",
			Name:      "confirms_total",
			Help:      "Firmware confirmation frames by handling outcome per radio.",
		}, []string{"radio_id", "result"}),

		psState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "psc",
			Subsystem: "ps",
			Name:      "state",
			Help:      "Current power-save state per radio (0=PS_NONE 1=PS_DISABLE_REQ_SENT 2=PS_ENABLE_REQ_SENT 3=PS_ENABLED).",
		}, []string{"radio_id"}),

		cmdDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "psc",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command latency from API entry to completion per action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.rejects,
		m.confirms,
		m.psState,
		m.cmdDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveTransition records a committed transition and moves the state gauge.
func (m *Metrics) ObserveTransition(radioID string, from, to ps.State) {
	m.transitions.WithLabelValues(radioID, from.String(), to.String()).Inc()
	m.psState.WithLabelValues(radioID).Set(float64(to))
}

// ObserveReject records an operation refused by the state machine.
func (m *Metrics) ObserveReject(radioID string, op ps.Op, current ps.State) {
	m.rejects.WithLabelValues(radioID, string(op), current.String()).Inc()
}

// ObserveConfirm records the handling outcome of a confirmation frame.
func (m *Metrics) ObserveConfirm(radioID, result string) {
	m.confirms.WithLabelValues(radioID, result).Inc()
}

// ObserveCommand records the latency of one command action.
func (m *Metrics) ObserveCommand(action string, latency time.Duration) {
	m.cmdDuration.WithLabelValues(action).Observe(latency.Seconds())
}

// SetPSState seeds or corrects the state gauge for a radio. Add paths use
// this so a radio reports PS_NONE before its first transition.
func (m *Metrics) SetPSState(radioID string, state ps.State) {
	m.psState.WithLabelValues(radioID).Set(float64(state))
}

// RemoveRadio drops every per-radio series so removed radios stop exporting.
func (m *Metrics) RemoveRadio(radioID string) {
	match := prometheus.Labels{"radio_id": radioID}
	m.transitions.DeletePartialMatch(match)
	m.rejects.DeletePartialMatch(match)
	m.confirms.DeletePartialMatch(match)
	m.psState.DeletePartialMatch(match)
}

// Handler returns the /metrics endpoint handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observer adapts one radio's state machine callbacks onto the metric
// vectors. It satisfies the ps.Observer contract: callbacks run under the
// controller lock, and counter increments are cheap enough for that.
type Observer struct {
	metrics *Metrics
	radioID string
}

var _ ps.Observer = (*Observer)(nil)

// ObserverFor returns a state machine observer bound to one radio.
func (m *Metrics) ObserverFor(radioID string) *Observer {
	return &Observer{metrics: m, radioID: radioID}
}

func (o *Observer) StateChanged(from, to ps.State) {
	o.metrics.ObserveTransition(o.radioID, from, to)
}

func (o *Observer) RequestRejected(op ps.Op, current ps.State, reason error) {
	o.metrics.ObserveReject(o.radioID, op, current)
}

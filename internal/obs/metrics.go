// Package obs wires the ambient observability stack (prometheus
// metrics, OpenTelemetry tracing) into the scheduler and broadcast
// hub, grounded on the pack's `99souls-ariadne` instrumentation style
// rather than anything in the teacher (the teacher has no metrics or
// tracing layer at all).
package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every prometheus collector the engine registers.
// A nil *Metrics is valid everywhere it's threaded through — callers
// that don't want metrics simply pass nil and every method becomes a
// no-op, so tests never need a registry.
type Metrics struct {
	broadcastConnections prometheus.Gauge
	broadcastLag         *prometheus.CounterVec
	schedulerTickSeconds *prometheus.HistogramVec
	schedulerFailures    *prometheus.CounterVec
	openAlarms           *prometheus.GaugeVec
}

// NewMetrics registers every collector against reg and returns the
// bundle. Pass prometheus.NewRegistry() (or prometheus.DefaultRegisterer
// wrapped in a Registry) from main.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		broadcastConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "intellimaint",
			Subsystem: "broadcast",
			Name:      "connections",
			Help:      "Number of currently registered broadcast hub connections.",
		}),
		broadcastLag: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intellimaint",
			Subsystem: "broadcast",
			Name:      "lag_events_total",
			Help:      "Number of dropped payloads due to a full subscriber queue.",
		}, []string{"topic"}),
		schedulerTickSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intellimaint",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one periodic-driver run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"driver"}),
		schedulerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intellimaint",
			Subsystem: "scheduler",
			Name:      "driver_failures_total",
			Help:      "Number of driver runs that panicked.",
		}, []string{"driver"}),
		openAlarms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "intellimaint",
			Subsystem: "alarms",
			Name:      "open_count",
			Help:      "Number of currently open alarms by severity.",
		}, []string{"severity"}),
	}
	reg.MustRegister(
		m.broadcastConnections,
		m.broadcastLag,
		m.schedulerTickSeconds,
		m.schedulerFailures,
		m.openAlarms,
	)
	return m
}

func (m *Metrics) IncConnections() {
	if m == nil {
		return
	}
	m.broadcastConnections.Inc()
}

func (m *Metrics) DecConnections() {
	if m == nil {
		return
	}
	m.broadcastConnections.Dec()
}

func (m *Metrics) ObserveLag(topic string) {
	if m == nil {
		return
	}
	m.broadcastLag.WithLabelValues(topic).Inc()
}

func (m *Metrics) ObserveTick(driver string, seconds float64) {
	if m == nil {
		return
	}
	m.schedulerTickSeconds.WithLabelValues(driver).Observe(seconds)
}

func (m *Metrics) IncFailure(driver string) {
	if m == nil {
		return
	}
	m.schedulerFailures.WithLabelValues(driver).Inc()
}

func (m *Metrics) SetOpenAlarms(severity string, count int) {
	if m == nil {
		return
	}
	m.openAlarms.WithLabelValues(severity).Set(float64(count))
}

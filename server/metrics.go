package server

import (
	"net/http"
	"time"

	"github.com/abhirockzz/langchaingo-trip-planner/emitter"
	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "tripplanner"

// Metrics holds the collectors of one server. Each instance owns its
// registry so tests can build as many servers as they like.
type Metrics struct {
	registry *prometheus.Registry

	streams        *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	actions        *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
	active         prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "plan_streams_total",
			Help:      "Plan streams served, by strategy and result.",
		}, []string{"strategy", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "plan_fallbacks_total",
			Help:      "Streams answered by mock replies instead of the model, by reason.",
		}, []string{"reason"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "plan_actions_total",
			Help:      "Itinerary actions emitted, by type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "plan_requests_rejected_total",
			Help:      "Plan requests rejected before streaming, by HTTP status.",
		}, []string{"code"}),
		streamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "plan_stream_duration_seconds",
			Help:      "Time from first byte to the end of a plan stream.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"strategy"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "plan_streams_active",
			Help:      "Plan streams currently open.",
		}),
	}

	m.registry.MustRegister(
		m.streams,
		m.fallbacks,
		m.actions,
		m.rejected,
		m.streamDuration,
		m.active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) streamStarted() {
	m.active.Inc()
}

func (m *Metrics) streamFinished(report emitter.Report, elapsed time.Duration, err error) {
	m.active.Dec()

	result := "completed"
	switch {
	case err != nil:
		result = "stopped"
	case report.Interrupted:
		result = "interrupted"
	}

	m.streams.WithLabelValues(string(report.Strategy), result).Inc()
	if report.FallbackReason != "" {
		m.fallbacks.WithLabelValues(report.FallbackReason).Inc()
	}
	m.streamDuration.WithLabelValues(string(report.Strategy)).Observe(elapsed.Seconds())
}

// actionEmitted counts kinds outside the known set as "unknown" to keep the
// label set bounded.
func (m *Metrics) actionEmitted(t plan.ActionType) {
	label := string(t)
	if !t.Known() {
		label = "unknown"
	}
	m.actions.WithLabelValues(label).Inc()
}

func (m *Metrics) requestRejected(code string) {
	m.rejected.WithLabelValues(code).Inc()
}

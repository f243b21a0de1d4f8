package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "clinic"
	subsystem = "assistant"
)

// AssistantMetrics exposes counters/histograms for the assistant pipeline.
// A nil *AssistantMetrics is a valid no-op.
type AssistantMetrics struct {
	queriesTotal   *prometheus.CounterVec
	faultsTotal    *prometheus.CounterVec
	cacheHitsTotal prometheus.Counter
	transfersTotal prometheus.Counter
	alertsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queries_total",
			Help:      "Answered assistant queries by type and urgency",
		}, []string{"type", "urgency"}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "faults_total",
			Help:      "Internal faults by pipeline stage",
		}, []string{"stage"}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "Queries answered from the near-duplicate cache",
		}),
		transfersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_transfers_total",
			Help:      "Anonymous sessions claimed by an authenticated user",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emergency_alerts_total",
			Help:      "Emergency alert notifications by outcome",
		}, []string{"status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "answer_latency_seconds",
			Help:      "Latency of answering a query",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.queriesTotal, m.faultsTotal, m.cacheHitsTotal, m.transfersTotal, m.alertsTotal, m.latency)
	return m
}

func (m *AssistantMetrics) ObserveQuery(queryType, urgency string, seconds float64) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(queryType, urgency).Inc()
	m.latency.WithLabelValues(queryType).Observe(seconds)
}

func (m *AssistantMetrics) ObserveFault(stage string) {
	if m == nil {
		return
	}
	m.faultsTotal.WithLabelValues(stage).Inc()
}

func (m *AssistantMetrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Inc()
}

func (m *AssistantMetrics) ObserveTransfer() {
	if m == nil {
		return
	}
	m.transfersTotal.Inc()
}

func (m *AssistantMetrics) ObserveAlert(status string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(status).Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paybox"

// Metrics holds the gateway's Prometheus collectors
type Metrics struct {
	ProviderCalls     *prometheus.CounterVec
	ProviderDuration  *prometheus.HistogramVec
	Callbacks         *prometheus.CounterVec
	SignatureFailures *prometheus.CounterVec
	Charges           *prometheus.CounterVec
}

// New registers the collectors on reg, or the default registerer when nil
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Outbound provider calls by operation and result status.",
		}, []string{"operation", "status"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_ms",
			Help:      "Outbound provider call latency in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000},
		}, []string{"operation"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Provider callbacks by payload format and outcome.",
		}, []string{"format", "outcome"}),
		SignatureFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_failures_total",
			Help:      "Callbacks rejected for a bad signature.",
		}, []string{"format"}),
		Charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_card_charges_total",
			Help:      "Saved-card charges by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.ProviderCalls, m.ProviderDuration, m.Callbacks, m.SignatureFailures, m.Charges)
	return m
}

// ProviderCall counts one provider request and observes its latency in milliseconds
func (m *Metrics) ProviderCall(operation, status string, elapsed time.Duration) {
	m.ProviderCalls.WithLabelValues(operation, status).Inc()
	m.ProviderDuration.WithLabelValues(operation).Observe(float64(elapsed) / float64(time.Millisecond))
}

// Callback counts a reconciled callback by payload format and outcome
func (m *Metrics) Callback(format, outcome string) {
	m.Callbacks.WithLabelValues(format, outcome).Inc()
}

// SignatureFailure counts a callback rejected for a bad signature
func (m *Metrics) SignatureFailure(format string) {
	m.SignatureFailures.WithLabelValues(format).Inc()
}

// Charge counts a saved-card charge by outcome
func (m *Metrics) Charge(outcome string) {
	m.Charges.WithLabelValues(outcome).Inc()
}

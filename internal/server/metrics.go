package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry           *prometheus.Registry
	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	claimsIssuedTotal  prometheus.Counter
	retryAttemptsTotal *prometheus.CounterVec
	dlqDepth           prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rubyscore_operations_total",
		Help: "Ledger operations handled by the API, by outcome",
	}, []string{"operation", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rubyscore_operation_duration_seconds",
		Help:    "Time spent handling mutating ledger requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	claims := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rubyscore_claims_issued_total",
		Help: "Claim signatures issued by the operator key",
	})

	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rubyscore_retry_attempts_total",
		Help: "Retry attempts against the ledger backend",
	}, []string{"result"})

	dlq := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rubyscore_dlq_depth",
		Help: "Number of items in the DLQ",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(ops, duration, claims, retries, dlq)

	return &metricsRegistry{
		registry:           r,
		operationsTotal:    ops,
		operationDuration:  duration,
		claimsIssuedTotal:  claims,
		retryAttemptsTotal: retries,
		dlqDepth:           dlq,
	}
}

func (m *metricsRegistry) register(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incOperation(op, status string) {
	m.operationsTotal.WithLabelValues(op, status).Inc()
}

func (m *metricsRegistry) observe(op string, d time.Duration) {
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *metricsRegistry) incClaimsIssued() {
	m.claimsIssuedTotal.Inc()
}

func (m *metricsRegistry) incRetry(result string) {
	m.retryAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *metricsRegistry) setDLQDepth(depth int) {
	m.dlqDepth.Set(float64(depth))
}

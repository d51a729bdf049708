package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart operations and backend round-trips.
type CartMetrics struct {
	operations *prometheus.CounterVec
	backend    *prometheus.HistogramVec
	checkouts  *prometheus.CounterVec
	jobRuns    *prometheus.CounterVec
	jobLatency *prometheus.HistogramVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart operations by kind, persistence mode and result.",
	}, []string{"operation", "mode", "result"})
	backend := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Duration of store backend requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_results_total",
		Help: "Checkout begin/confirm results.",
	}, []string{"stage", "result"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_job_runs_total",
		Help: "Maintenance job runs by job and result.",
	}, []string{"job", "result"})
	jobLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintenance_job_duration_seconds",
		Help:    "Duration of maintenance job executions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	reg.MustRegister(operations, backend, checkouts, jobRuns, jobLatency)
	return &CartMetrics{
		operations: operations,
		backend:    backend,
		checkouts:  checkouts,
		jobRuns:    jobRuns,
		jobLatency: jobLatency,
	}
}

// ObserveOperation counts one cart operation.
func (c *CartMetrics) ObserveOperation(operation, mode string, err error) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(mode), result(err)).Inc()
}

// ObserveBackend records the latency of a backend call.
func (c *CartMetrics) ObserveBackend(endpoint string, duration time.Duration, err error) {
	if c == nil || c.backend == nil {
		return
	}
	c.backend.WithLabelValues(normalizeLabel(endpoint), result(err)).Observe(duration.Seconds())
}

// ObserveCheckout counts a checkout stage outcome.
func (c *CartMetrics) ObserveCheckout(stage string, err error) {
	if c == nil || c.checkouts == nil {
		return
	}
	c.checkouts.WithLabelValues(normalizeLabel(stage), result(err)).Inc()
}

// ObserveJob records one maintenance job execution.
func (c *CartMetrics) ObserveJob(job string, duration time.Duration, err error) {
	if c == nil || c.jobRuns == nil {
		return
	}
	c.jobLatency.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
	c.jobRuns.WithLabelValues(normalizeLabel(job), result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

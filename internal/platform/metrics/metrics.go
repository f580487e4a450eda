package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process wide Prometheus metrics. Module specific metrics live
// in each module's metrics package.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	LockWait     prometheus.Histogram
}

// New creates and registers the process wide metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arsenal_http_requests_total",
			Help: "HTTP requests by route pattern and status class",
		}, []string{"route", "status"}),
		LockWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arsenal_lock_wait_seconds",
			Help:    "Time spent waiting for a per-key critical section",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func (m *Metrics) IncrementRequest(route, status string) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, status).Inc()
	}
}

func (m *Metrics) ObserveLockWait(seconds float64) {
	if m != nil {
		m.LockWait.Observe(seconds)
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

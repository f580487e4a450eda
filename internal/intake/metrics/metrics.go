package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Intake rows by outcome (accepted or the rejection reason)
	Rows *prometheus.CounterVec

	BatchSize prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Rows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arsenal_intake_rows_total",
			Help: "Bulk intake rows by outcome",
		}, []string{"outcome"}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arsenal_intake_batch_rows",
			Help:    "Rows per bulk intake batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (m *Metrics) ObserveRow(outcome string) {
	if m != nil {
		m.Rows.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveBatch(rows int) {
	if m != nil {
		m.BatchSize.Observe(float64(rows))
	}
}

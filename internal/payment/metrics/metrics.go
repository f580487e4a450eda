package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Payment events by outcome: settled, skipped, malformed, failed
	Events *prometheus.CounterVec

	UnitsSold prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Events: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arsenal_payment_events_total",
			Help: "Payment completed events by outcome",
		}, []string{"outcome"}),
		UnitsSold: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsenal_payment_units_sold_total",
			Help: "Serial units marked sold from payment events",
		}),
	}
}

func (m *Metrics) IncrementEvent(outcome string) {
	if m != nil {
		m.Events.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AddUnitsSold(n int) {
	if m != nil {
		m.UnitsSold.Add(float64(n))
	}
}

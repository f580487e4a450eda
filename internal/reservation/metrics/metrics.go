package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Reservation lifecycle transitions by target state
	Transitions *prometheus.CounterVec

	// Units reserved, counted at creation
	UnitsReserved prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arsenal_reservation_transitions_total",
			Help: "Reservation state transitions by target state",
		}, []string{"state"}),
		UnitsReserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsenal_reservation_units_total",
			Help: "Units reserved across all reservations",
		}),
	}
}

func (m *Metrics) IncrementTransition(state string) {
	if m != nil {
		m.Transitions.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) AddUnitsReserved(n int) {
	if m != nil {
		m.UnitsReserved.Add(float64(n))
	}
}

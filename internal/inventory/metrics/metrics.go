package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for serial unit transitions.
type Metrics struct {
	UnitsLoaded prometheus.Counter

	// Transition outcomes by operation (bind, release, sold) and result code
	Transitions *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		UnitsLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsenal_serial_units_loaded_total",
			Help: "Serial units loaded into inventory",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arsenal_serial_transitions_total",
			Help: "Serial unit state transitions by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) IncrementLoaded() {
	if m != nil {
		m.UnitsLoaded.Inc()
	}
}

func (m *Metrics) IncrementTransition(operation, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(operation, outcome).Inc()
	}
}

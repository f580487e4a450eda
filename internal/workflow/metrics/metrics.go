package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Stage transitions by target stage
	Advanced *prometheus.CounterVec

	// Blocked transitions by unmet precondition
	Blocked *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Advanced: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arsenal_import_group_stage_transitions_total",
			Help: "Import group stage transitions by target stage",
		}, []string{"stage"}),
		Blocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arsenal_import_group_stage_blocked_total",
			Help: "Import group transitions refused by unmet precondition",
		}, []string{"precondition"}),
	}
}

func (m *Metrics) IncrementAdvanced(stage string) {
	if m != nil {
		m.Advanced.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) IncrementBlocked(precondition string) {
	if m != nil {
		m.Blocked.WithLabelValues(precondition).Inc()
	}
}

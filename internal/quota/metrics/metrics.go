package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Admission outcomes: admitted, or the exceeded dimension
	Admissions *prometheus.CounterVec

	ReleaseFloors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Admissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arsenal_quota_admissions_total",
			Help: "Quota admission attempts by outcome",
		}, []string{"outcome"}),
		ReleaseFloors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsenal_quota_release_floor_total",
			Help: "Releases that would have driven a quota counter below zero",
		}),
	}
}

func (m *Metrics) IncrementAdmission(outcome string) {
	if m != nil {
		m.Admissions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementReleaseFloor() {
	if m != nil {
		m.ReleaseFloors.Inc()
	}
}

package predictor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// Metrics counts decisions per transport and outcome. A nil *Metrics is a no-op.
type Metrics struct {
	decisions *prometheus.CounterVec
	hours     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irrigation",
			Subsystem: "predictor",
			Name:      "decisions_total",
			Help:      "Pipeline invocations by transport and outcome.",
		}, []string{"transport", "outcome"}),
		hours: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "irrigation",
			Subsystem: "predictor",
			Name:      "duration_hours",
			Help:      "Recommended irrigation duration (unclamped).",
			Buckets:   []float64{-0.5, 0, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2},
		}),
	}
}

func (m *Metrics) Observe(transport string, d model.IrrigationDecision, err error) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(transport, Outcome(d.ShouldIrrigate, err)).Inc()
	if err == nil && d.DurationHours != nil {
		m.hours.Observe(*d.DurationHours)
	}
}

package controller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// Metrics of the controller. A nil *Metrics is a no-op.
type Metrics struct {
	readings     *prometheus.CounterVec
	pumpCommands *prometheus.CounterVec
	latency      prometheus.Histogram
	breaker      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		readings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irrigation",
			Subsystem: "controller",
			Name:      "readings_total",
			Help:      "Sensor readings by outcome.",
		}, []string{"outcome"}),
		pumpCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irrigation",
			Subsystem: "controller",
			Name:      "pump_commands_total",
			Help:      "Pump commands published by state.",
		}, []string{"state"}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "irrigation",
			Subsystem: "controller",
			Name:      "predictor_latency_seconds",
			Help:      "Predictor round trip, breaker included.",
			Buckets:   prometheus.DefBuckets,
		}),
		breaker: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "irrigation",
			Subsystem: "controller",
			Name:      "predictor_breaker_state",
			Help:      "0 closed, 1 half-open, 2 open.",
		}),
	}
}

// RegisterClients exposes the number of connected dashboards.
func (m *Metrics) RegisterClients(reg prometheus.Registerer, count func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "irrigation",
		Subsystem: "controller",
		Name:      "ws_clients",
		Help:      "Connected dashboard clients.",
	}, func() float64 { return float64(count()) })
}

func (m *Metrics) reading(outcome string) {
	if m != nil {
		m.readings.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) pumpCommand(state model.PumpState) {
	if m != nil {
		m.pumpCommands.WithLabelValues(string(state)).Inc()
	}
}

func (m *Metrics) observeLatency(d time.Duration) {
	if m != nil {
		m.latency.Observe(d.Seconds())
	}
}

func (m *Metrics) setBreakerState(s gobreaker.State) {
	if m == nil {
		return
	}
	switch s {
	case gobreaker.StateClosed:
		m.breaker.Set(0)
	case gobreaker.StateHalfOpen:
		m.breaker.Set(1)
	case gobreaker.StateOpen:
		m.breaker.Set(2)
	}
}

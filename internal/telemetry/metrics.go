package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"steadymic/internal/domain"
)

// Metrics exports engine snapshots to Prometheus. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	stats       *prometheus.GaugeVec
	neverStop   prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		// state is 1 for the current recognition state and 0 for every other
		state: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "steadymic_recognition_state",
				Help: "Current recognition state",
			},
			[]string{"state"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steadymic_state_transitions_total",
				Help: "Total number of recognition state transitions",
			},
			[]string{"state", "reason"},
		),
		stats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "steadymic_session_stat",
				Help: "Latest session statistics as published by the engine",
			},
			[]string{"stat"},
		),
		neverStop: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "steadymic_continuity_unbroken",
				Help: "1 while no fatal error or stop has ended the logical session",
			},
		),
	}
}

// Observe records one published snapshot. Snapshots are absolute, so replaying one is harmless
// for everything except the transition counter.
func (m *Metrics) Observe(snap domain.Snapshot) {
	lo.ForEach(domain.AllStates, func(state domain.RecognitionState, _ int) {
		m.state.WithLabelValues(string(state)).Set(lo.Ternary(state == snap.State, 1.0, 0.0))
	})
	m.transitions.WithLabelValues(string(snap.State), string(snap.Reason)).Inc()

	for name, value := range statValues(snap.Stats) {
		m.stats.WithLabelValues(name).Set(float64(value))
	}
	m.neverStop.Set(lo.Ternary(snap.Flags.NeverStopped, 1.0, 0.0))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statValues(stats domain.Stats) map[string]int {
	return map[string]int{
		"start_count":                    stats.StartCount,
		"microphone_permission_requests": stats.MicrophonePermissionRequests,
		"error_count":                    stats.ErrorCount,
		"pause_count":                    stats.PauseCount,
		"resume_count":                   stats.ResumeCount,
		"transparent_restarts":           stats.TransparentRestarts,
		"auto_restarts":                  stats.AutoRestarts,
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firecast_upstream_calls_total",
			Help: "Total fire weather API calls",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firecast_upstream_latency_seconds",
			Help:    "Fire weather API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	PlaceholdersSynthesized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firecast_placeholders_synthesized_total",
			Help: "Placeholder weather values added for missing station days",
		},
		[]string{"kind"},
	)

	RecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firecast_recompute_duration_seconds",
			Help:    "Time spent rebuilding grid rows or fire danger summaries",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"kind"},
	)

	GridRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "firecast_grid_rows",
			Help: "Rows in the current forecast grid",
		},
	)

	EditsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firecast_edits_applied_total",
			Help: "Grid rows changed by forecaster edits, including filled-forward rows",
		},
	)
)

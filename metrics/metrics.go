package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StageBuckets covers stage latencies from 5ms to 2 minutes.
var StageBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RunsTotal counts finished pipeline runs by terminal status.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegen_runs_total",
			Help: "Pipeline runs",
		},
		[]string{"status"},
	)

	// AttemptsTotal counts attempts by outcome.
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegen_attempts_total",
			Help: "Pipeline attempts",
		},
		[]string{"outcome"},
	)

	// StageDuration records collaborator call latency in seconds by stage.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablegen_stage_duration_seconds",
			Help:    "Stage duration",
			Buckets: StageBuckets,
		},
		[]string{"stage"},
	)

	// ActiveRuns tracks runs currently in progress.
	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablegen_runs_active",
			Help: "Active pipeline runs",
		},
	)

	// ToolCallsTotal counts MCP tool invocations by tool and status.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegen_tool_calls_total",
			Help: "Tool calls",
		},
		[]string{"tool", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		AttemptsTotal,
		StageDuration,
		ActiveRuns,
		ToolCallsTotal,
	)
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

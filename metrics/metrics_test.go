package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	RunsTotal.WithLabelValues("succeeded").Inc()
	AttemptsTotal.WithLabelValues("succeeded").Inc()
	StageDuration.WithLabelValues("executing_code").Observe(0.01)
	ToolCallsTotal.WithLabelValues("run_table_pipeline", "ok").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"tablegen_runs_total":             false,
		"tablegen_attempts_total":         false,
		"tablegen_stage_duration_seconds": false,
		"tablegen_runs_active":            false,
		"tablegen_tool_calls_total":       false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "metric %q not registered", name)
	}
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("failed"))
	RunsTotal.WithLabelValues("failed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues("failed")))
}

func TestHandler(t *testing.T) {
	AttemptsTotal.WithLabelValues("generation_failed").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tablegen_attempts_total"))
}

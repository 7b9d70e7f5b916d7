package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"go-careerwatch/internal/apiclient"
	"go-careerwatch/internal/discovery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the sum of all samples of a counter family matching labels.
func value(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range mf.GetMetric() {
			got := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			}
		}
	}
	return total
}

func TestDiscoveryResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "found"},
		{fmt.Errorf("wrapped: %w", discovery.ErrDiscoveryTimeout), "timeout"},
		{discovery.ErrNoJSONTraffic, "no_json"},
		{discovery.ErrNoConfidentMatch, "no_match"},
		{errors.New("browser crashed"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscoveryResult(tt.err))
		})
	}
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveCompany("acme", "api", 4, 1)
	m.ObserveCompany("acme", "html", 2, 2)
	m.ObserveDiscovery(discovery.ErrNoJSONTraffic)
	m.ObserveReplayFailure("acme", fmt.Errorf("%w: 410", apiclient.ErrReplayFailed))
	m.ObserveReplayFailure("acme", errors.New("not a replay failure"))
	m.ObserveRun("ok", 42*time.Second, true)

	assert.Equal(t, 6.0, value(t, m, "careerwatch_jobs_matched_total", map[string]string{"company": "acme"}))
	assert.Equal(t, 3.0, value(t, m, "careerwatch_jobs_new_total", nil))
	assert.Equal(t, 1.0, value(t, m, "careerwatch_company_results_total", map[string]string{"source": "html"}))
	assert.Equal(t, 1.0, value(t, m, "careerwatch_discoveries_total", map[string]string{"result": "no_json"}))
	assert.Equal(t, 1.0, value(t, m, "careerwatch_replay_failures_total", nil))
	assert.Equal(t, 1.0, value(t, m, "careerwatch_runs_total", map[string]string{"status": "ok"}))
	assert.Greater(t, value(t, m, "careerwatch_last_run_success_timestamp_seconds", nil), 0.0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCompany("acme", "api", 1, 1)
		m.ObserveDiscovery(nil)
		m.ObserveReplayFailure("acme", apiclient.ErrReplayFailed)
		m.ObserveRun("failed", time.Second, false)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRun("ok", time.Second, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `careerwatch_runs_total{status="ok"} 1`)
}

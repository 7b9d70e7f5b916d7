// Package metrics exposes run, discovery and replay counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"go-careerwatch/internal/apiclient"
	"go-careerwatch/internal/discovery"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "careerwatch"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	LastRunSuccess prometheus.Gauge

	CompanyResults *prometheus.CounterVec
	JobsMatched    *prometheus.CounterVec
	JobsNew        *prometheus.CounterVec

	Discoveries    *prometheus.CounterVec
	ReplayFailures *prometheus.CounterVec
}

// New registers every collector on a fresh registry, so tests and binaries
// never collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.RunsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Completed runs by outcome (ok, partial, failed)",
	}, []string{"status"})
	m.RunDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full run",
		Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
	})
	m.LastRunSuccess = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_success_timestamp_seconds",
		Help:      "Unix time of the last run that committed history",
	})

	m.CompanyResults = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "company_results_total",
		Help:      "Per-company outcome by fetch path (api, html, failed)",
	}, []string{"company", "source"})
	m.JobsMatched = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_matched_total",
		Help:      "Postings that passed the interest filter",
	}, []string{"company"})
	m.JobsNew = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_new_total",
		Help:      "Postings not seen in any earlier run",
	}, []string{"company"})

	m.Discoveries = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discoveries_total",
		Help:      "API discovery attempts by result",
	}, []string{"result"})
	m.ReplayFailures = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replay_failures_total",
		Help:      "Stored configurations that failed replay and were invalidated",
	}, []string{"company"})

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry to tests and exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) ObserveRun(status string, elapsed time.Duration, committed bool) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	if committed {
		m.LastRunSuccess.SetToCurrentTime()
	}
}

func (m *Metrics) ObserveCompany(company, source string, matched, fresh int) {
	if m == nil {
		return
	}
	m.CompanyResults.WithLabelValues(company, source).Inc()
	m.JobsMatched.WithLabelValues(company).Add(float64(matched))
	m.JobsNew.WithLabelValues(company).Add(float64(fresh))
}

// ObserveDiscovery labels a discovery attempt by its error.
func (m *Metrics) ObserveDiscovery(err error) {
	if m == nil {
		return
	}
	m.Discoveries.WithLabelValues(DiscoveryResult(err)).Inc()
}

func (m *Metrics) ObserveReplayFailure(company string, err error) {
	if m == nil || !errors.Is(err, apiclient.ErrReplayFailed) {
		return
	}
	m.ReplayFailures.WithLabelValues(company).Inc()
}

// DiscoveryResult maps a discovery error to a metric label.
func DiscoveryResult(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, discovery.ErrDiscoveryTimeout):
		return "timeout"
	case errors.Is(err, discovery.ErrNoJSONTraffic):
		return "no_json"
	case errors.Is(err, discovery.ErrNoConfidentMatch):
		return "no_match"
	default:
		return "error"
	}
}

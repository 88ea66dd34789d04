// Package metrics provides Prometheus instrumentation for graph builds.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests and library use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "citethreads"

// Fetch operations.
const (
	OpPaper      = "paper"
	OpReferences = "references"
	OpCitations  = "citations"
	OpSearch     = "search"
	OpContexts   = "contexts"
)

// Fetch results.
const (
	ResultSuccess     = "success"
	ResultEmpty       = "empty"
	ResultNotFound    = "not_found"
	ResultError       = "error"
	ResultRateLimited = "rate_limited"
	ResultSkipped     = "skipped"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	// SourceRequests counts source calls.
	// Labels: source, op (paper, references, citations, search, contexts),
	// result (success, empty, not_found, error, rate_limited, skipped)
	SourceRequests *prometheus.CounterVec

	// SourceMarkedLimited counts availability trips per source.
	SourceMarkedLimited *prometheus.CounterVec

	// Builds counts finished builds by terminal status.
	Builds *prometheus.CounterVec

	// BuildDuration measures wall time of graph builds.
	BuildDuration prometheus.Histogram

	// Classifications counts classification outcomes.
	// Labels: result (llm, cached, error, skipped)
	Classifications *prometheus.CounterVec
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SourceRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "source_requests_total",
			Help:      "Data source calls by source, operation and result",
		}, []string{"source", "op", "result"}),
		SourceMarkedLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "source_marked_limited_total",
			Help:      "Times a data source was marked limited",
		}, []string{"source"}),
		Builds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "builds_total",
			Help:      "Finished graph builds by terminal status",
		}, []string{"status"}),
		BuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "build_duration_seconds",
			Help:      "Graph build wall time in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "classifications_total",
			Help:      "Edge classifications by result",
		}, []string{"result"}),
	}
}

// RecordFetch counts one source call.
func (m *Metrics) RecordFetch(source, op, result string) {
	if m == nil {
		return
	}
	m.SourceRequests.WithLabelValues(source, op, result).Inc()
}

// RecordMarkedLimited counts one availability trip.
func (m *Metrics) RecordMarkedLimited(source string) {
	if m == nil {
		return
	}
	m.SourceMarkedLimited.WithLabelValues(source).Inc()
}

// RecordBuild counts a finished build and observes its duration.
func (m *Metrics) RecordBuild(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Builds.WithLabelValues(status).Inc()
	m.BuildDuration.Observe(d.Seconds())
}

// RecordClassification counts one classification outcome.
func (m *Metrics) RecordClassification(result string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(result).Inc()
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordFetch("openalex", OpPaper, ResultSuccess)
	m.RecordFetch("openalex", OpPaper, ResultSuccess)
	m.RecordMarkedLimited("semantic_scholar")
	m.RecordBuild("completed", 3*time.Second)
	m.RecordClassification("cached")

	if got := testutil.ToFloat64(m.SourceRequests.WithLabelValues("openalex", OpPaper, ResultSuccess)); got != 2 {
		t.Errorf("source_requests_total = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.SourceMarkedLimited.WithLabelValues("semantic_scholar")); got != 1 {
		t.Errorf("source_marked_limited_total = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.Builds.WithLabelValues("completed")); got != 1 {
		t.Errorf("builds_total = %f, want 1", got)
	}
	if got := testutil.CollectAndCount(m.BuildDuration); got != 1 {
		t.Errorf("build_duration_seconds series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.Classifications.WithLabelValues("cached")); got != 1 {
		t.Errorf("classifications_total = %f, want 1", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordFetch("s", OpPaper, ResultError)
	m.RecordMarkedLimited("s")
	m.RecordBuild("failed", time.Second)
	m.RecordClassification("error")
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Two registries must not collide.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAnalysisMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAnalysisMetrics(reg)

	m.ObserveAnalysis("success", "", []string{"urgent", "question"}, 0.0002)
	m.ObserveAnalysis("success", "", []string{"urgent"}, 0.0001)
	m.ObserveAnalysis("failed", "null_input", nil, 0.00001)
	m.ObserveJob("completed")

	if got := testutil.ToFloat64(m.processedTotal.WithLabelValues("success", "none")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.processedTotal.WithLabelValues("failed", "null_input")); got != 1 {
		t.Fatalf("expected 1 null_input failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.flagsTotal.WithLabelValues("urgent")); got != 2 {
		t.Fatalf("expected 2 urgent flags, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobsTotal.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed job, got %v", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestAnalysisMetricsDoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewAnalysisMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	NewAnalysisMetrics(reg)
}

func TestAnalysisMetricsNilSafe(t *testing.T) {
	var m *AnalysisMetrics
	m.ObserveAnalysis("success", "", []string{"polite"}, 0.1)
	m.ObserveJob("failed")
}

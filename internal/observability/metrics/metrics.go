package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnalysisMetrics exposes counters/histograms for the analysis pipeline and job worker.
type AnalysisMetrics struct {
	processedTotal *prometheus.CounterVec
	flagsTotal     *prometheus.CounterVec
	duration       prometheus.Histogram
	jobsTotal      *prometheus.CounterVec
}

func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	m := &AnalysisMetrics{
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analyzer",
			Subsystem: "pipeline",
			Name:      "processed_total",
			Help:      "Total messages processed by the analysis pipeline",
		}, []string{"status", "error_kind"}),
		flagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analyzer",
			Subsystem: "pipeline",
			Name:      "flags_total",
			Help:      "Classification flags raised on successful analyses",
		}, []string{"flag"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "analyzer",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Time spent validating and classifying a message",
			Buckets:   []float64{.00005, .0001, .0005, .001, .005, .01, .05},
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analyzer",
			Name:      "jobs_total",
			Help:      "Async analysis jobs handled by the worker",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.processedTotal, m.flagsTotal, m.duration, m.jobsTotal)
	return m
}

// ObserveAnalysis records one pipeline outcome.
func (m *AnalysisMetrics) ObserveAnalysis(status, errorKind string, flags []string, seconds float64) {
	if m == nil {
		return
	}
	if errorKind == "" {
		errorKind = "none"
	}
	m.processedTotal.WithLabelValues(status, errorKind).Inc()
	for _, flag := range flags {
		m.flagsTotal.WithLabelValues(flag).Inc()
	}
	m.duration.Observe(seconds)
}

func (m *AnalysisMetrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
}

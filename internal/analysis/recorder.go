package analysis

import (
	"sync"
	"time"
)

// Report is a point-in-time view of a Recorder.
type Report struct {
	TotalProcessed int64     `json:"total_processed"`
	Succeeded      int64     `json:"successful_analyses"`
	Failed         int64     `json:"failed_analyses"`
	SuccessRate    float64   `json:"success_rate"`
	StartedAt      time.Time `json:"start_time"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
}

// Recorder counts processed messages. Counters only grow; create a new
// Recorder to reset. Safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	total     int64
	succeeded int64
	failed    int64
	startedAt time.Time
	now       func() time.Time
}

// NewRecorder creates a Recorder starting at zero.
func NewRecorder() *Recorder {
	return newRecorderWithClock(time.Now)
}

func newRecorderWithClock(now func() time.Time) *Recorder {
	return &Recorder{
		startedAt: now().UTC(),
		now:       now,
	}
}

// RecordSuccess counts a classified message and returns its sequence number.
func (r *Recorder) RecordSuccess() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.succeeded++
	return r.total
}

// RecordFailure counts a rejected message and returns its sequence number.
func (r *Recorder) RecordFailure() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.failed++
	return r.total
}

// Snapshot returns the current counters. SuccessRate is 0 before the first message.
func (r *Recorder) Snapshot() Report {
	r.mu.Lock()
	report := Report{
		TotalProcessed: r.total,
		Succeeded:      r.succeeded,
		Failed:         r.failed,
		StartedAt:      r.startedAt,
	}
	r.mu.Unlock()

	report.SuccessRate = SuccessRate(report.Succeeded, report.TotalProcessed)
	report.UptimeSeconds = r.now().UTC().Sub(r.startedAt).Seconds()
	return report
}

// SuccessRate returns succeeded/total, or 0 when total is 0.
func SuccessRate(succeeded, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(succeeded) / float64(total)
}

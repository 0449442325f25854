package ingest

import (
	"sync"
	"time"

	"github.com/calwatch/warchest/internal/model"
)

// Report accumulates the outcome of one import run. Counters are safe for
// concurrent use by source partitions.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	mu       sync.Mutex
	Created  int
	Updated  int
	Skipped  int
	Rejected int

	Rejections []model.Rejection
	Warnings   []model.Rejection
}

func newReport(runID string) *Report {
	return &Report{RunID: runID, StartedAt: time.Now()}
}

func (r *Report) finish() {
	r.FinishedAt = time.Now()
}

func (r *Report) addCreated(n int) {
	r.mu.Lock()
	r.Created += n
	r.mu.Unlock()
}

func (r *Report) addUpdated(n int) {
	r.mu.Lock()
	r.Updated += n
	r.mu.Unlock()
}

func (r *Report) addSkipped(n int) {
	r.mu.Lock()
	r.Skipped += n
	r.mu.Unlock()
}

func (r *Report) addRejection(rej model.Rejection) {
	r.mu.Lock()
	r.Rejected++
	r.Rejections = append(r.Rejections, rej)
	r.mu.Unlock()
}

func (r *Report) addWarning(rej model.Rejection) {
	r.mu.Lock()
	r.Warnings = append(r.Warnings, rej)
	r.mu.Unlock()
}

// Duration is the wall time of the run. A run that failed before
// finishing reports time elapsed so far.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ReasonCounts tallies rejections by reason for run summaries.
func (r *Report) ReasonCounts() map[model.RejectReason]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[model.RejectReason]int)
	for _, rej := range r.Rejections {
		counts[rej.Reason]++
	}
	return counts
}

package scheduler

import (
	"context"
	"time"
)

// Job is a unit of scheduled background work.
type Job interface {
	// Name returns the job name, unique within a scheduler.
	Name() string

	// Run executes the job.
	Run(ctx context.Context) error

	// Schedule returns the cron expression, with a seconds field.
	// Examples: "0 15 6 * * *" (daily at 06:15), "@hourly".
	Schedule() string
}

// JobResult records one execution of a job.
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// historyCap bounds how many results a job keeps. Old results roll off.
const historyCap = 100

// JobHistory keeps the most recent execution results for one job.
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest past the cap.
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > historyCap {
		h.Results = h.Results[len(h.Results)-historyCap:]
	}
}

// Latest returns the last n results, oldest first.
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n == 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// SuccessRate returns the fraction of recorded runs that succeeded.
func (h *JobHistory) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}
	ok := 0
	for _, result := range h.Results {
		if result.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(h.Results))
}

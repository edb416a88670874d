package batch

import (
	"time"

	"levelset/internal/normalize"
)

// Counters tracks batch completions. Completed always equals
// Succeeded + Failed; skipped files count as succeeded.
type Counters struct {
	Completed int
	Succeeded int
	Failed    int
}

// Report summarizes a finished batch.
type Report struct {
	RunID     string
	OutputDir string
	Started   time.Time
	Finished  time.Time
	Total     int
	Counters  Counters
	// Outcomes is indexed like the files passed to Run.
	Outcomes []normalize.Outcome
}

// Succeeded returns the number of files normalized or copied unchanged.
func (r Report) Succeeded() int { return r.Counters.Succeeded }

// Failed returns the number of files that produced no output.
func (r Report) Failed() int { return r.Counters.Failed }

// Skipped returns how many successes were already within tolerance.
func (r Report) Skipped() int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.Status == normalize.StatusSkipped {
			n++
		}
	}
	return n
}

// Failures returns the failed outcomes in input order.
func (r Report) Failures() []normalize.Outcome {
	var failed []normalize.Outcome
	for _, outcome := range r.Outcomes {
		if outcome.Status == normalize.StatusFailed {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// Duration is the wall time of the batch.
func (r Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

package history

import (
	"time"

	"levelset/internal/batch"
	"levelset/internal/loudness"
	"levelset/internal/normalize"
)

// Run is one archived batch.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	InputDir   string
	OutputDir  string
	TargetLUFS float64
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FileRecord is the archived outcome of one input.
type FileRecord struct {
	RunID      string
	Position   int
	InputPath  string
	OutputPath string
	Kind       string
	Status     string
	Mode       string
	// IntegratedLUFS and AdjustmentLU are nil when measurement failed.
	IntegratedLUFS *float64
	AdjustmentLU   *float64
	Reason         string
	Duration       time.Duration
}

// FromReport converts a finished batch into ledger rows.
func FromReport(report batch.Report, inputDir string, target loudness.Target) (Run, []FileRecord) {
	run := Run{
		ID:         report.RunID,
		StartedAt:  report.Started.UTC(),
		FinishedAt: report.Finished.UTC(),
		InputDir:   inputDir,
		OutputDir:  report.OutputDir,
		TargetLUFS: target.IntegratedLUFS,
		Total:      report.Total,
		Succeeded:  report.Succeeded(),
		Failed:     report.Failed(),
		Skipped:    report.Skipped(),
	}
	records := make([]FileRecord, 0, len(report.Outcomes))
	for i, outcome := range report.Outcomes {
		record := FileRecord{
			RunID:     report.RunID,
			Position:  i,
			InputPath: outcome.File.Path,
			Kind:      outcome.File.Kind.String(),
			Status:    outcome.Status.String(),
			Reason:    outcome.Reason,
			Duration:  outcome.Duration,
		}
		if outcome.Status != normalize.StatusFailed {
			record.OutputPath = outcome.OutputPath
			record.Mode = outcome.Plan.Mode.String()
		}
		if outcome.Analysis.Integrated.Finite() {
			value := outcome.Analysis.Integrated.Value
			adjustment := loudness.Adjustment(outcome.Analysis, target)
			record.IntegratedLUFS = &value
			record.AdjustmentLU = &adjustment
		}
		records = append(records, record)
	}
	return run, records
}

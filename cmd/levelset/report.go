package main

import (
	"fmt"
	"io"
	"path/filepath"

	"levelset/internal/batch"
	"levelset/internal/loudness"
)

// renderReport prints the final batch summary and, when present, a table of
// failed files.
func renderReport(out io.Writer, report batch.Report, target loudness.Target, logPath string, colorize bool) {
	for _, line := range renderSectionHeader("Batch report", colorize) {
		fmt.Fprintln(out, line)
	}
	if report.Total == 0 {
		fmt.Fprintln(out, renderStatusLine("Files", statusWarn, "no supported media files found", colorize))
		return
	}

	succeeded := fmt.Sprintf("%d/%d", report.Succeeded(), report.Total)
	if skipped := report.Skipped(); skipped > 0 {
		succeeded += fmt.Sprintf(" (%d already at target, copied)", skipped)
	}
	succeededKind := statusOK
	if report.Succeeded() == 0 {
		succeededKind = statusWarn
	}
	failedKind := statusOK
	if report.Failed() > 0 {
		failedKind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Succeeded", succeededKind, succeeded, colorize))
	fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d/%d", report.Failed(), report.Total), colorize))
	fmt.Fprintln(out, renderStatusLine("Target", statusInfo, formatLUFS(target.IntegratedLUFS)+" LUFS", colorize))
	fmt.Fprintln(out, renderStatusLine("Output", statusInfo, report.OutputDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatDuration(report.Duration()), colorize))
	if logPath != "" {
		fmt.Fprintln(out, renderStatusLine("Log", statusInfo, logPath, colorize))
	}

	failures := report.Failures()
	if len(failures) == 0 {
		return
	}
	rows := make([][]string, 0, len(failures))
	for _, outcome := range failures {
		rows = append(rows, []string{
			filepath.Base(outcome.File.Path),
			displayLabel(outcome.File.Kind.String()),
			outcome.Reason,
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"File", "Kind", "Reason"}, rows, nil))
}

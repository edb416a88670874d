// Package logging assembles structured slog loggers and formatting helpers used
// across levelset.
//
// It owns the configurable console/JSON handlers, the per-run log file layout
// and retention, and context-aware helpers so pipeline code automatically tags
// log lines with run IDs, file names, and stages. The event handler renders
// records as short human-readable lines for the batch event stream, and a
// no-op logger serves tests and wiring code that cannot fail.
package logging

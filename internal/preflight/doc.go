// Package preflight provides readiness checks for the engine and the
// filesystem paths a batch depends on.
//
// These checks run in two contexts:
//   - "levelset run" calls RunAll before confirming a batch; any failure
//     aborts before a single file is touched.
//   - "levelset check" renders the same results, plus CheckSystemDeps, as a
//     table.
//
// The ffprobe check is gated by ffmpeg.probe_inputs; disabled features are
// skipped.
package preflight

// Package loudness measures integrated loudness with ffmpeg's loudnorm filter
// and decides how a file should be normalized.
//
// Measurer runs the analysis-only passes and turns loudnorm's JSON statistics
// into a Measurement; ExtractStats is the single, independently testable
// function that digs that JSON block out of ffmpeg's interleaved diagnostic
// output. Decide is pure: given the measurements, media kind, and Target it
// returns a Plan (skip, single-pass, or linear two-pass) that carries every
// parameter the execution step needs.
package loudness

// Package normalize runs the per-file pipeline: detect, measure, plan,
// execute, classify.
//
// Pipeline.Run never returns an error or panics; every failure, including a
// panic in a stage, becomes a Failed Outcome with a human-readable reason so
// one bad file cannot affect the rest of a batch. Outputs are written to a
// temp sibling and renamed into place, so an output path either holds a
// complete file or is absent.
package normalize

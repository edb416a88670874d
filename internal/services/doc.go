// Package services defines shared utilities consumed by the pipeline stages
// and the batch scheduler.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, file names, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that tag failures so the
//     CLI can attach a next-step hint.
package services

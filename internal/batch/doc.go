// Package batch fans file pipelines out across a fixed pool of workers and
// aggregates their outcomes.
//
// A Scheduler runs exactly one batch. Every completion updates the shared
// Counters and publishes the new completed count on the progress stream inside
// the same critical section, so an observer never sees one without the other.
// Log lines produced by the pipeline and the scheduler are rendered into a
// bounded stream that drops the oldest line when the consumer stalls; progress
// is coalesced to the latest value. Both streams close when Run returns.
package batch

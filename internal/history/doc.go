// Package history archives finished batches in a SQLite ledger so past runs
// can be listed and inspected. The ledger is write-once per run and is never
// consulted to resume or skip work.
package history

// Package main hosts the levelset CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, runs preflight checks,
// asks for confirmation, and then hands a folder to the batch scheduler while
// rendering its log and progress streams. It also exposes the engine check,
// configuration scaffolding, and the batch history ledger.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// surfaced here through dedicated commands or flags.
package main

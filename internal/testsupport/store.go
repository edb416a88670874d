package testsupport

import (
	"testing"

	"levelset/internal/config"
	"levelset/internal/history"
)

// MustOpenHistory opens the ledger configured for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

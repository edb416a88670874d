package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().AddDate(0, 0, -10)
	write := func(name string, mtime time.Time) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		return path
	}
	stale := write("levelset-20200101T000000-aaaa.log", old)
	current := write("levelset-20200102T000000-bbbb.log", old)
	fresh := write("levelset-20260101T000000-cccc.log", time.Now())
	other := write("notes.txt", old)

	removed := CleanupOldLogs(NewNop(), dir, 7, current)
	if removed != 1 {
		t.Fatalf("expected one file removed, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale log removed")
	}
	for _, path := range []string{current, fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", filepath.Base(path), err)
		}
	}
	if CleanupOldLogs(nil, dir, 0, "") != 0 {
		t.Fatal("retention 0 must disable pruning")
	}
}

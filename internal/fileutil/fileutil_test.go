package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTempPath(t *testing.T) {
	tests := map[string]string{
		"/out/song.mp3":  "/out/song.levelset-tmp.mp3",
		"/out/clip.m4a":  "/out/clip.levelset-tmp.m4a",
		"/out/noext":     "/out/noext.levelset-tmp",
		"/out/a.b.c.wav": "/out/a.b.c.levelset-tmp.wav",
	}
	for in, want := range tests {
		if got := TempPath(in); got != want {
			t.Fatalf("TempPath(%q) = %q, want %q", in, got, want)
		}
		if !IsTempPath(want) {
			t.Fatalf("IsTempPath(%q) = false", want)
		}
	}
	if IsTempPath("/out/song.mp3") {
		t.Fatal("regular output reported as temp")
	}
}

func TestCopyPreserving(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.flac")
	dst := filepath.Join(dir, "out", "src.flac")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("flac-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := CopyPreserving(src, dst); err != nil {
		t.Fatalf("CopyPreserving: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "flac-bytes" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode not preserved: %o", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("mtime not preserved: %v", info.ModTime())
	}
	if _, err := os.Stat(TempPath(dst)); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestCopyPreservingMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.mp3")
	if err := CopyPreserving(filepath.Join(dir, "missing.mp3"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("destination should not exist")
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := make([]byte, 1024*64)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(content) {
		t.Fatalf("size mismatch: got %d, want %d", len(got), len(content))
	}
}

func TestRemoveStale(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.levelset-tmp.mp3", "b.mp3", "c.levelset-tmp.m4a"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := RemoveStale(dir)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.mp3")); err != nil {
		t.Fatalf("regular output removed: %v", err)
	}
	if n, err := RemoveStale(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Fatalf("missing dir: n=%d err=%v", n, err)
	}
}

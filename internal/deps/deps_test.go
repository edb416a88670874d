package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[2].Available || results[2].Detail != "command not configured" || !results[2].Optional {
		t.Fatalf("unexpected status for blank command: %#v", results[2])
	}
}

func TestCheckEngineReportsVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	binary := filepath.Join(t.TempDir(), "ffmpeg")
	script := []byte("#!/bin/sh\necho 'ffmpeg version 7.1 Copyright (c) 2000-2024'\necho 'built with gcc'\n")
	if err := os.WriteFile(binary, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	status := CheckEngine(context.Background(), binary)
	if !status.Available {
		t.Fatalf("expected engine available, got detail %q", status.Detail)
	}
	if status.Detail != "ffmpeg version 7.1 Copyright (c) 2000-2024" {
		t.Fatalf("unexpected version detail %q", status.Detail)
	}
}

func TestCheckEngineMissingBinary(t *testing.T) {
	status := CheckEngine(context.Background(), filepath.Join(t.TempDir(), "ffmpeg"))
	if status.Available {
		t.Fatal("expected missing engine to be unavailable")
	}
	if !strings.Contains(status.Detail, "not found") {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}

type stallingVersioner struct{}

func (stallingVersioner) Version(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestCheckEngineTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	status := checkEngine(ctx, "ffmpeg", stallingVersioner{})
	if status.Available {
		t.Fatal("expected stalled engine to be unavailable")
	}
	if !strings.Contains(status.Detail, "-version") {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}

type failingVersioner struct{ err error }

func (f failingVersioner) Version(context.Context) (string, error) { return "", f.err }

func TestCheckEngineExitFailure(t *testing.T) {
	status := checkEngine(context.Background(), "ffmpeg", failingVersioner{err: errors.New("ffmpeg exited with status 1")})
	if status.Available || status.Detail != "ffmpeg exited with status 1" {
		t.Fatalf("unexpected status %#v", status)
	}
}

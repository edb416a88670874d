package history_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"levelset/internal/batch"
	"levelset/internal/history"
	"levelset/internal/loudness"
	"levelset/internal/media"
	"levelset/internal/normalize"
	"levelset/internal/testsupport"
)

func sampleReport(runID string, started time.Time) batch.Report {
	target := loudness.DefaultTarget()
	return batch.Report{
		RunID:     runID,
		OutputDir: "/music/normalized",
		Started:   started,
		Finished:  started.Add(90 * time.Second),
		Total:     3,
		Counters:  batch.Counters{Completed: 3, Succeeded: 2, Failed: 1},
		Outcomes: []normalize.Outcome{
			{
				File:       media.File{Path: "/music/a.mp3", Kind: media.KindAudio},
				Status:     normalize.StatusSuccess,
				OutputPath: "/music/normalized/a.mp3",
				Plan:       loudness.Plan{Mode: loudness.ModeTwoPass, Target: target},
				Analysis:   loudness.Measurement{Integrated: loudness.Metric{Value: -20.5, Present: true}},
				Duration:   4 * time.Second,
			},
			{
				File:       media.File{Path: "/music/b.flac", Kind: media.KindAudio},
				Status:     normalize.StatusSkipped,
				OutputPath: "/music/normalized/b.flac",
				Plan:       loudness.Plan{Mode: loudness.ModeSkip, Target: target},
				Analysis:   loudness.Measurement{Integrated: loudness.Metric{Value: -16.2, Present: true}},
				Duration:   time.Second,
			},
			{
				File:       media.File{Path: "/music/c.mkv", Kind: media.KindVideo},
				Status:     normalize.StatusFailed,
				OutputPath: "/music/normalized/c.m4a",
				Reason:     "engine reported no loudness statistics",
			},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run, files := history.FromReport(sampleReport("3f2a9c10-aaaa-bbbb-cccc-000000000001", started), "/music", loudness.DefaultTarget())
	if run.Skipped != 1 || run.Succeeded != 2 || run.Failed != 1 {
		t.Fatalf("unexpected run counters %+v", run)
	}
	if err := store.Record(ctx, run, files); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, gotFiles, err := store.GetRun(ctx, "3f2a9c10")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.ID != run.ID || got.InputDir != "/music" || got.TargetLUFS != -16 {
		t.Fatalf("unexpected run %+v", got)
	}
	if !got.StartedAt.Equal(started) || got.Duration() != 90*time.Second {
		t.Fatalf("timestamps not preserved: %v %v", got.StartedAt, got.Duration())
	}
	if len(gotFiles) != 3 {
		t.Fatalf("expected 3 files, got %d", len(gotFiles))
	}
	first := gotFiles[0]
	if first.Mode != "two_pass" || first.IntegratedLUFS == nil || *first.IntegratedLUFS != -20.5 {
		t.Fatalf("unexpected first file %+v", first)
	}
	if first.AdjustmentLU == nil || *first.AdjustmentLU != 4.5 {
		t.Fatalf("unexpected adjustment %v", first.AdjustmentLU)
	}
	failed := gotFiles[2]
	if failed.Status != "failed" || failed.OutputPath != "" || failed.IntegratedLUFS != nil {
		t.Fatalf("failed file should carry no output or measurement: %+v", failed)
	}
	if failed.Reason != "engine reported no loudness statistics" {
		t.Fatalf("reason not preserved: %q", failed.Reason)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run, files := history.FromReport(sampleReport(id, base.Add(time.Duration(i)*time.Hour)), "/music", loudness.DefaultTarget())
		if err := store.Record(ctx, run, files); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("unexpected order %+v", runs)
	}
}

func TestGetRunErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	base := time.Now()
	for _, id := range []string{"abc-1", "abc-2"} {
		run, files := history.FromReport(sampleReport(id, base), "/music", loudness.DefaultTarget())
		if err := store.Record(ctx, run, files); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if _, _, err := store.GetRun(ctx, "abc"); !errors.Is(err, history.ErrAmbiguousRun) {
		t.Fatalf("expected ambiguous, got %v", err)
	}
	if _, _, err := store.GetRun(ctx, "zzz"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := store.GetRun(ctx, "abc-1"); err != nil {
		t.Fatalf("exact id should resolve: %v", err)
	}
	if _, _, err := store.GetRun(ctx, "ab_"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("underscore must match literally, got %v", err)
	}
}

func TestRecordRejectsDuplicateRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	run, files := history.FromReport(sampleReport("dup", time.Now()), "/music", loudness.DefaultTarget())
	if err := store.Record(context.Background(), run, files); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if err := store.Record(context.Background(), run, files); err == nil {
		t.Fatal("expected duplicate run to fail")
	}
	_, got, err := store.GetRun(context.Background(), "dup")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(got) != len(files) {
		t.Fatalf("failed insert must roll back, found %d files", len(got))
	}
}

func TestPruneRemovesOldRunsAndFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	now := time.Now()
	old, oldFiles := history.FromReport(sampleReport("old", now.Add(-60*24*time.Hour)), "/music", loudness.DefaultTarget())
	fresh, freshFiles := history.FromReport(sampleReport("fresh", now), "/music", loudness.DefaultTarget())
	for _, pair := range []struct {
		run   history.Run
		files []history.FileRecord
	}{{old, oldFiles}, {fresh, freshFiles}} {
		if err := store.Record(ctx, pair.run, pair.files); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	removed, err := store.Prune(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, _, err := store.GetRun(ctx, "old"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("old run should be gone, got %v", err)
	}
	runs, err := store.ListRuns(ctx, 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one remaining run, got %d (%v)", len(runs), err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.History.Path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(cfg.History.Path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestOpenRejectsNonDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	if err := os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := history.Open(path); err == nil {
		t.Fatal("expected a non-database file to be rejected")
	}
}

func TestForeignKeysEnabledOnEveryConnection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	// Holding each connection forces the pool to open new ones.
	var conns []*sql.Conn
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()
	for i := 0; i < 4; i++ {
		conn, err := store.DB().Conn(ctx)
		if err != nil {
			t.Fatalf("Conn: %v", err)
		}
		conns = append(conns, conn)
		var enabled int
		if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
			t.Fatalf("query pragma: %v", err)
		}
		if enabled != 1 {
			t.Fatalf("connection %d has foreign_keys=%d", i, enabled)
		}
	}
}

package normalize_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"levelset/internal/ffmpeg"
	"levelset/internal/loudness"
	"levelset/internal/media"
	"levelset/internal/media/ffprobe"
	"levelset/internal/normalize"
	"levelset/internal/testsupport"
)

func newJob(t *testing.T, name string) normalize.Job {
	t.Helper()
	dir := t.TempDir()
	path := testsupport.WriteMediaFiles(t, dir, name)[0]
	file, err := media.Classify(path)
	if err != nil {
		t.Fatalf("classify %s: %v", name, err)
	}
	outDir := filepath.Join(dir, "normalized")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	return normalize.Job{File: file, OutputPath: media.OutputPath(file, outDir)}
}

func TestRunTwoPassWritesOutput(t *testing.T) {
	engine := testsupport.NewFakeEngine(-20)
	pipeline := normalize.New(engine, normalize.Options{})
	job := newJob(t, "song.mp3")

	outcome := pipeline.Run(context.Background(), job)
	if outcome.Status != normalize.StatusSuccess {
		t.Fatalf("expected success, got %s (%s: %v)", outcome.Status, outcome.Reason, outcome.Err)
	}
	if outcome.Plan.Mode != loudness.ModeTwoPass {
		t.Fatalf("expected two-pass plan, got %s", outcome.Plan.Mode)
	}
	want := []testsupport.Pass{testsupport.PassAnalysis, testsupport.PassDetailed, testsupport.PassExecute}
	if got := engine.CallsFor("song.mp3"); !slices.Equal(got, want) {
		t.Fatalf("passes = %v, want %v", got, want)
	}
	data, err := os.ReadFile(job.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "normalized:song.mp3" {
		t.Fatalf("unexpected output content %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(job.OutputPath))
	if len(entries) != 1 {
		t.Fatalf("expected only the output file, found %d entries", len(entries))
	}
	if outcome.Duration <= 0 {
		t.Fatal("expected duration to be recorded")
	}
}

func TestRunSkipCopiesAndIsIdempotent(t *testing.T) {
	engine := testsupport.NewFakeEngine(-16.4)
	pipeline := normalize.New(engine, normalize.Options{})
	job := newJob(t, "quiet.flac")
	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(job.File.Path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	source, err := os.ReadFile(job.File.Path)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}

	for i := 0; i < 2; i++ {
		outcome := pipeline.Run(context.Background(), job)
		if outcome.Status != normalize.StatusSkipped {
			t.Fatalf("run %d: expected skipped, got %s (%s)", i, outcome.Status, outcome.Reason)
		}
		if !outcome.Status.Succeeded() {
			t.Fatal("skipped outcome should count as succeeded")
		}
		copied, err := os.ReadFile(job.OutputPath)
		if err != nil {
			t.Fatalf("run %d: read output: %v", i, err)
		}
		if string(copied) != string(source) {
			t.Fatalf("run %d: output differs from source", i)
		}
		info, err := os.Stat(job.OutputPath)
		if err != nil {
			t.Fatalf("stat output: %v", err)
		}
		if !info.ModTime().Equal(past) {
			t.Fatalf("run %d: mtime %v, want %v", i, info.ModTime(), past)
		}
	}
	for _, pass := range engine.CallsFor("quiet.flac") {
		if pass != testsupport.PassAnalysis {
			t.Fatalf("skip should only run analysis passes, saw %s", pass)
		}
	}
}

func TestRunVideoExtractsAudio(t *testing.T) {
	engine := testsupport.NewFakeEngine(-16)
	pipeline := normalize.New(engine, normalize.Options{})
	job := newJob(t, "clip.mp4")
	if filepath.Ext(job.OutputPath) != ".m4a" {
		t.Fatalf("expected .m4a output, got %s", job.OutputPath)
	}

	outcome := pipeline.Run(context.Background(), job)
	if outcome.Status != normalize.StatusSuccess {
		t.Fatalf("video at target must still be normalized, got %s (%s)", outcome.Status, outcome.Reason)
	}
	var execArgs []string
	for _, call := range engine.Calls() {
		if call.Pass == testsupport.PassExecute {
			execArgs = call.Args
		}
	}
	joined := strings.Join(execArgs, " ")
	for _, want := range []string{"-vn", "-c:a aac", "-b:a 192k", "-ar 48000"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("execute args missing %q: %s", want, joined)
		}
	}
}

func TestRunDetailedFailureFallsBackToSinglePass(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	engine.Fail = func(pass testsupport.Pass, _ string) error {
		if pass == testsupport.PassDetailed {
			return &ffmpeg.ExitError{Code: 1, Tail: "filter error"}
		}
		return nil
	}
	pipeline := normalize.New(engine, normalize.Options{})
	job := newJob(t, "track.wav")

	outcome := pipeline.Run(context.Background(), job)
	if outcome.Status != normalize.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.Plan.Mode != loudness.ModeSinglePass {
		t.Fatalf("expected single-pass fallback, got %s", outcome.Plan.Mode)
	}
	if strings.Contains(outcome.Plan.Filter(), "measured_I") {
		t.Fatalf("single pass filter must not carry measurements: %s", outcome.Plan.Filter())
	}
}

func TestRunDetailedUnparseableFallsBackToSinglePass(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	engine.Stderr = func(pass testsupport.Pass, _ string) string {
		if pass == testsupport.PassDetailed {
			return "no statistics here"
		}
		return ""
	}
	pipeline := normalize.New(engine, normalize.Options{})

	outcome := pipeline.Run(context.Background(), newJob(t, "track.ogg"))
	if outcome.Status != normalize.StatusSuccess || outcome.Plan.Mode != loudness.ModeSinglePass {
		t.Fatalf("expected single-pass success, got %s/%s", outcome.Status, outcome.Plan.Mode)
	}
}

func TestRunDetailedTimeoutFails(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	engine.Fail = func(pass testsupport.Pass, _ string) error {
		if pass == testsupport.PassDetailed {
			return fmt.Errorf("%w after 10m0s", ffmpeg.ErrTimeout)
		}
		return nil
	}
	pipeline := normalize.New(engine, normalize.Options{})
	job := newJob(t, "long.mp3")

	outcome := pipeline.Run(context.Background(), job)
	if outcome.Status != normalize.StatusFailed {
		t.Fatalf("expected failure, got %s", outcome.Status)
	}
	if outcome.Reason != "detailed measurement timed out" {
		t.Fatalf("unexpected reason %q", outcome.Reason)
	}
	if !errors.Is(outcome.Err, loudness.ErrTimeout) {
		t.Fatalf("expected loudness timeout, got %v", outcome.Err)
	}
	if slices.Contains(engine.CallsFor("long.mp3"), testsupport.PassExecute) {
		t.Fatal("execute must not run after a detailed timeout")
	}
}

func TestRunAnalysisFailureFails(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	engine.Fail = func(pass testsupport.Pass, _ string) error {
		if pass == testsupport.PassAnalysis {
			return &ffmpeg.ExitError{Code: 1, Tail: "Invalid data found when processing input"}
		}
		return nil
	}
	pipeline := normalize.New(engine, normalize.Options{})
	job := newJob(t, "broken.mp3")

	outcome := pipeline.Run(context.Background(), job)
	if outcome.Status != normalize.StatusFailed {
		t.Fatalf("expected failure, got %s", outcome.Status)
	}
	if !errors.Is(outcome.Err, loudness.ErrProcessFailed) {
		t.Fatalf("expected process failure, got %v", outcome.Err)
	}
	if !strings.Contains(outcome.Reason, "Invalid data") {
		t.Fatalf("reason should carry the engine diagnostics: %q", outcome.Reason)
	}
	if _, err := os.Stat(job.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no output expected, stat err=%v", err)
	}
}

func TestRunSilentInputIsInconclusive(t *testing.T) {
	engine := testsupport.NewFakeEngine(-90)
	pipeline := normalize.New(engine, normalize.Options{})

	outcome := pipeline.Run(context.Background(), newJob(t, "silence.wav"))
	if outcome.Status != normalize.StatusFailed {
		t.Fatalf("expected failure, got %s", outcome.Status)
	}
	if !errors.Is(outcome.Err, loudness.ErrInconclusive) {
		t.Fatalf("expected inconclusive, got %v", outcome.Err)
	}
}

func TestRunExecuteTimeoutLeavesNoOutput(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	engine.Fail = func(pass testsupport.Pass, _ string) error {
		if pass == testsupport.PassExecute {
			return fmt.Errorf("%w after 10m0s", ffmpeg.ErrTimeout)
		}
		return nil
	}
	pipeline := normalize.New(engine, normalize.Options{})
	job := newJob(t, "big.flac")

	outcome := pipeline.Run(context.Background(), job)
	if outcome.Reason != "normalization timed out" {
		t.Fatalf("unexpected reason %q", outcome.Reason)
	}
	var execErr *normalize.ExecuteError
	if !errors.As(outcome.Err, &execErr) || execErr.Kind != normalize.ExecTimeout {
		t.Fatalf("expected execute timeout, got %v", outcome.Err)
	}
	entries, _ := os.ReadDir(filepath.Dir(job.OutputPath))
	if len(entries) != 0 {
		t.Fatalf("expected empty output dir, found %d entries", len(entries))
	}
}

func TestRunEmptyEngineOutputIsIOFailure(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	engine.Stderr = func(pass testsupport.Pass, _ string) string {
		if pass == testsupport.PassExecute {
			return "wrote nothing"
		}
		return ""
	}
	pipeline := normalize.New(engine, normalize.Options{})

	outcome := pipeline.Run(context.Background(), newJob(t, "ghost.mp3"))
	if !errors.Is(outcome.Err, normalize.ErrIOFailure) {
		t.Fatalf("expected io failure, got %v", outcome.Err)
	}
	if !strings.HasPrefix(outcome.Reason, "output could not be written") {
		t.Fatalf("unexpected reason %q", outcome.Reason)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	engine.Fail = func(pass testsupport.Pass, _ string) error {
		if pass == testsupport.PassExecute {
			panic("engine exploded")
		}
		return nil
	}
	pipeline := normalize.New(engine, normalize.Options{})

	outcome := pipeline.Run(context.Background(), newJob(t, "boom.mp3"))
	if outcome.Status != normalize.StatusFailed {
		t.Fatalf("expected failure, got %s", outcome.Status)
	}
	if outcome.Err == nil || !strings.Contains(outcome.Err.Error(), "engine exploded") {
		t.Fatalf("expected panic to be captured, got %v", outcome.Err)
	}
}

func TestRunCancelledContextReportsCancellation(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	engine.Delay = time.Second
	pipeline := normalize.New(engine, normalize.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := pipeline.Run(ctx, newJob(t, "late.mp3"))
	if outcome.Status != normalize.StatusFailed || outcome.Reason != "batch cancelled" {
		t.Fatalf("expected cancelled failure, got %s (%s)", outcome.Status, outcome.Reason)
	}
}

func TestRunRejectsUnsupportedKind(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	pipeline := normalize.New(engine, normalize.Options{})
	job := normalize.Job{File: media.File{Path: "/tmp/notes.txt"}, OutputPath: "/tmp/normalized/notes.txt"}

	outcome := pipeline.Run(context.Background(), job)
	if outcome.Status != normalize.StatusFailed || outcome.Reason != "unsupported file type" {
		t.Fatalf("unexpected outcome %s (%s)", outcome.Status, outcome.Reason)
	}
	if len(engine.Calls()) != 0 {
		t.Fatal("engine must not run for unsupported files")
	}
}

func TestRunProbeRejectsFilesWithoutAudio(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	prober := normalize.ProberFunc(func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{Index: 0, CodecType: "video", CodecName: "h264"}}}, nil
	})
	pipeline := normalize.New(engine, normalize.Options{Prober: prober})

	outcome := pipeline.Run(context.Background(), newJob(t, "silent-film.mkv"))
	if outcome.Status != normalize.StatusFailed || outcome.Reason != "no audio stream" {
		t.Fatalf("unexpected outcome %s (%s)", outcome.Status, outcome.Reason)
	}
	if len(engine.Calls()) != 0 {
		t.Fatal("engine must not run when the probe finds no audio")
	}
}

func TestRunProbeMapsPrimaryAudioStream(t *testing.T) {
	engine := testsupport.NewFakeEngine(-24)
	prober := normalize.ProberFunc(func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264"},
			{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2, Tags: map[string]string{"title": "Director Commentary"}},
			{Index: 2, CodecType: "audio", CodecName: "ac3", Channels: 6, Disposition: map[string]int{"default": 1}},
		}}, nil
	})
	pipeline := normalize.New(engine, normalize.Options{Prober: prober})

	outcome := pipeline.Run(context.Background(), newJob(t, "movie.mkv"))
	if outcome.Status != normalize.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Reason)
	}
	for _, call := range engine.Calls() {
		if call.Pass != testsupport.PassExecute {
			continue
		}
		if !strings.Contains(strings.Join(call.Args, " "), "-map 0:a:1") {
			t.Fatalf("expected second audio stream to be mapped: %v", call.Args)
		}
		return
	}
	t.Fatal("execute pass not recorded")
}

func TestExecuteArgs(t *testing.T) {
	plan := loudness.Plan{Mode: loudness.ModeSinglePass, Target: loudness.DefaultTarget()}
	file := media.File{Path: "in.wav", Kind: media.KindAudio}
	got := normalize.ExecuteArgs(file, plan, "out.wav", "")
	want := []string{"-hide_banner", "-nostdin", "-nostats", "-y", "-i", "in.wav", "-af", plan.Filter(), "-ar", "48000", "out.wav"}
	if !slices.Equal(got, want) {
		t.Fatalf("args = %v\nwant %v", got, want)
	}
}

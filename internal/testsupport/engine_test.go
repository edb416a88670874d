package testsupport_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"levelset/internal/ffmpeg"
	"levelset/internal/loudness"
	"levelset/internal/testsupport"
)

func TestStubFFmpegScriptAnswersEveryPass(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	binary := testsupport.WriteExecutable(t, dir, "ffmpeg", testsupport.StubFFmpegScript(-21.5))
	runner := ffmpeg.NewRunner(binary)
	ctx := context.Background()

	version, err := runner.Version(ctx)
	if err != nil || !strings.Contains(version, "7.1-stub") {
		t.Fatalf("unexpected version %q (%v)", version, err)
	}

	out, err := runner.Run(ctx, 10*time.Second, loudness.AnalysisArgs("in.mp3")...)
	if err != nil {
		t.Fatalf("analysis pass: %v", err)
	}
	measurement, err := loudness.ExtractStats(out.Stderr)
	if err != nil {
		t.Fatalf("extract stats: %v", err)
	}
	if !measurement.Complete() || measurement.Integrated.Value != -21.5 {
		t.Fatalf("unexpected measurement %+v", measurement)
	}

	output := filepath.Join(dir, "out.mp3")
	if _, err := runner.Run(ctx, 10*time.Second, "-hide_banner", "-y", "-i", "in.mp3", output); err != nil {
		t.Fatalf("execute pass: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil || string(data) != "normalized" {
		t.Fatalf("unexpected output %q (%v)", data, err)
	}
}

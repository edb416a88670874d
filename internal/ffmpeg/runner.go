package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrNotFound means the ffmpeg executable could not be started.
	ErrNotFound = errors.New("ffmpeg executable not found")
	// ErrTimeout means the invocation exceeded its time budget and was killed.
	ErrTimeout = errors.New("ffmpeg timed out")
)

// ExitError reports a non-zero exit together with the last diagnostic lines.
type ExitError struct {
	Code int
	Tail string
}

func (e *ExitError) Error() string {
	if e.Tail == "" {
		return fmt.Sprintf("ffmpeg exited with status %d", e.Code)
	}
	return fmt.Sprintf("ffmpeg exited with status %d: %s", e.Code, e.Tail)
}

// Output is what survives a finished invocation.
type Output struct {
	Stderr    []byte
	Truncated bool
	Elapsed   time.Duration
}

// Runner executes ffmpeg. The zero value runs "ffmpeg" from PATH.
type Runner struct {
	Binary string
	// TailBytes bounds retained stderr; <= 0 selects the default.
	TailBytes int
	// WaitDelay bounds how long to wait for pipes after the process is killed.
	WaitDelay time.Duration
}

// NewRunner constructs a Runner for the given executable.
func NewRunner(binary string) *Runner {
	return &Runner{Binary: strings.TrimSpace(binary)}
}

// Run executes one ffmpeg invocation. A positive timeout kills the process
// once exceeded and yields ErrTimeout.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, args ...string) (Output, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stderr := newTailBuffer(r.TailBytes)
	cmd := exec.CommandContext(runCtx, r.binary(), args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = r.waitDelay()

	start := time.Now()
	err := cmd.Run()
	out := Output{Stderr: stderr.Bytes(), Truncated: stderr.Truncated(), Elapsed: time.Since(start)}
	if err == nil {
		return out, nil
	}
	return out, r.classify(ctx, runCtx, err, out.Stderr, timeout)
}

// Version runs "ffmpeg -version" and returns its first line.
func (r *Runner) Version(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(runCtx, r.binary(), "-hide_banner", "-version")
	cmd.WaitDelay = r.waitDelay()
	output, err := cmd.Output()
	if err != nil {
		return "", r.classify(ctx, runCtx, err, nil, 5*time.Second)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line), nil
}

func (r *Runner) binary() string {
	if r == nil || strings.TrimSpace(r.Binary) == "" {
		return executableName("ffmpeg")
	}
	return r.Binary
}

func (r *Runner) waitDelay() time.Duration {
	if r == nil || r.WaitDelay <= 0 {
		return 5 * time.Second
	}
	return r.WaitDelay
}

func (r *Runner) classify(parent, runCtx context.Context, err error, stderr []byte, timeout time.Duration) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, r.binary(), err)
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode(), Tail: LastLines(string(stderr), 3)}
	}
	return fmt.Errorf("run ffmpeg: %w", err)
}

// LastLines returns the final n non-empty lines of s joined by " | ".
func LastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append(kept, line)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, " | ")
}

package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"levelset/internal/ffmpeg"
)

// Pass identifies which ffmpeg invocation a FakeEngine received.
type Pass string

const (
	PassAnalysis Pass = "analysis"
	PassDetailed Pass = "detailed"
	PassExecute  Pass = "execute"
	PassOther    Pass = "other"
)

// FakeCall records one FakeEngine invocation.
type FakeCall struct {
	Pass  Pass
	Input string
	Args  []string
}

// FakeEngine stands in for ffmpeg. Measurement passes print a loudnorm
// statistics block; execute passes write "normalized:<input>" to the output.
type FakeEngine struct {
	// Integrated maps input base names to integrated loudness. Missing names
	// use DefaultIntegrated.
	Integrated        map[string]float64
	DefaultIntegrated float64
	// Fail, when it returns non-nil, makes the pass fail with that error.
	Fail func(pass Pass, input string) error
	// Stderr, when it returns non-empty, replaces the generated diagnostics.
	Stderr func(pass Pass, input string) string
	// Delay is applied to every call and honours context cancellation.
	Delay time.Duration

	mu        sync.Mutex
	calls     []FakeCall
	active    int
	maxActive int
}

// NewFakeEngine returns an engine reporting every input at integrated LUFS.
func NewFakeEngine(integrated float64) *FakeEngine {
	return &FakeEngine{DefaultIntegrated: integrated, Integrated: map[string]float64{}}
}

// Run implements the engine used by the measurer and pipeline.
func (f *FakeEngine) Run(ctx context.Context, timeout time.Duration, args ...string) (ffmpeg.Output, error) {
	pass, input := ClassifyArgs(args)
	f.enter(FakeCall{Pass: pass, Input: input, Args: append([]string(nil), args...)})
	defer f.leave()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ffmpeg.Output{}, ctx.Err()
		}
	}
	if f.Fail != nil {
		if err := f.Fail(pass, input); err != nil {
			return ffmpeg.Output{Stderr: []byte("simulated failure")}, err
		}
	}
	if f.Stderr != nil {
		if stderr := f.Stderr(pass, input); stderr != "" {
			return ffmpeg.Output{Stderr: []byte(stderr)}, nil
		}
	}

	switch pass {
	case PassAnalysis, PassDetailed:
		return ffmpeg.Output{Stderr: []byte(StatsOutput(f.integrated(input)))}, nil
	case PassExecute:
		output := args[len(args)-1]
		if err := os.WriteFile(output, []byte("normalized:"+filepath.Base(input)), 0o644); err != nil {
			return ffmpeg.Output{}, &ffmpeg.ExitError{Code: 1, Tail: err.Error()}
		}
		return ffmpeg.Output{}, nil
	default:
		return ffmpeg.Output{Stderr: []byte("ffmpeg version fake")}, nil
	}
}

// Version mimics Runner.Version.
func (f *FakeEngine) Version(context.Context) (string, error) {
	return "ffmpeg version fake", nil
}

// Calls returns a copy of the recorded invocations.
func (f *FakeEngine) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// CallsFor returns the recorded passes for one input base name.
func (f *FakeEngine) CallsFor(name string) []Pass {
	var passes []Pass
	for _, call := range f.Calls() {
		if filepath.Base(call.Input) == name {
			passes = append(passes, call.Pass)
		}
	}
	return passes
}

// MaxConcurrent reports the highest number of simultaneous calls observed.
func (f *FakeEngine) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func (f *FakeEngine) integrated(input string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.Integrated[filepath.Base(input)]; ok {
		return v
	}
	return f.DefaultIntegrated
}

func (f *FakeEngine) enter(call FakeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
}

func (f *FakeEngine) leave() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

// ClassifyArgs identifies the pass and input path of an ffmpeg argument list.
func ClassifyArgs(args []string) (Pass, string) {
	var input, filter string
	overwrite := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-i":
			if i+1 < len(args) {
				input = args[i+1]
			}
		case "-af":
			if i+1 < len(args) {
				filter = args[i+1]
			}
		case "-y":
			overwrite = true
		}
	}
	switch {
	case overwrite:
		return PassExecute, input
	case filter == "loudnorm=print_format=json":
		return PassAnalysis, input
	case strings.Contains(filter, "print_format=json"):
		return PassDetailed, input
	default:
		return PassOther, input
	}
}

// StatsBlock renders a loudnorm statistics block the way ffmpeg prints it.
func StatsBlock(integrated, truePeak, lra, threshold float64) string {
	return fmt.Sprintf(`{
	"input_i" : "%.2f",
	"input_tp" : "%.2f",
	"input_lra" : "%.2f",
	"input_thresh" : "%.2f",
	"output_i" : "-16.00",
	"output_tp" : "-1.50",
	"output_lra" : "7.00",
	"output_thresh" : "-26.00",
	"normalization_type" : "dynamic",
	"target_offset" : "0.00"
}`, integrated, truePeak, lra, threshold)
}

// StatsOutput wraps a statistics block in typical ffmpeg diagnostic noise.
func StatsOutput(integrated float64) string {
	return "Input #0, wav, from 'input':\n  Duration: 00:03:00.00\nsize=N/A time=00:03:00.00 bitrate=N/A speed= 500x\n" +
		"[Parsed_loudnorm_0 @ 0x5600cafe0000] \n" +
		StatsBlock(integrated, -2.0, 7.0, integrated-10) + "\n"
}

// StubFFmpegScript is a POSIX shell ffmpeg that answers -version, prints a
// statistics block at integrated LUFS for measurement passes, and writes the
// output file for normalization passes.
func StubFFmpegScript(integrated float64) string {
	return fmt.Sprintf(`#!/bin/sh
for arg in "$@"; do last="$arg"; done
case " $* " in
  *" -version "*) echo "ffmpeg version 7.1-stub Copyright (c) the FFmpeg developers"; exit 0 ;;
  *" -y "*) printf 'normalized' > "$last"; exit 0 ;;
esac
cat >&2 <<'EOF'
%s
EOF
`, StatsOutput(integrated))
}

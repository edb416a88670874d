package preflight

import (
	"context"
	"os"

	"levelset/internal/config"
	"levelset/internal/deps"
	"levelset/internal/ffmpeg"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// RunAll executes every applicable check for a batch over inputDir.
func RunAll(ctx context.Context, cfg *config.Config, inputDir string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckReadableDirectory("Input directory", inputDir))

	// The output folder is created on demand, so its parent must be writable.
	outputDir := cfg.OutputDir(inputDir)
	if _, err := os.Stat(outputDir); err == nil {
		results = append(results, CheckDirectoryAccess("Output directory", outputDir))
	} else {
		results = append(results, CheckDirectoryAccess("Output parent", inputDir))
	}

	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	binary := ffmpeg.ResolveBinary(cfg.FFmpeg.Binary)
	engine := deps.CheckEngine(ctx, binary)
	results = append(results, Result{Name: "FFmpeg", Passed: engine.Available, Detail: engine.Detail})

	if cfg.FFmpeg.ProbeInputs {
		for _, status := range deps.CheckBinaries([]deps.Requirement{probeRequirement(cfg, binary)}) {
			results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: statusDetail(status)})
		}
	}
	return results
}

func statusDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	return status.Detail
}

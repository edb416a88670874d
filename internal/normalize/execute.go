package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"

	"levelset/internal/ffmpeg"
	"levelset/internal/fileutil"
	"levelset/internal/logging"
	"levelset/internal/loudness"
	"levelset/internal/media"
	"levelset/internal/media/audio"
)

const (
	outputSampleRate = "48000"
	extractedCodec   = "aac"
	extractedBitrate = "192k"
)

// ExecuteArgs builds the normalization invocation writing to output.
// Video inputs drop the picture and are re-encoded to AAC; mapSpec selects a
// specific audio stream when non-empty.
func ExecuteArgs(file media.File, plan loudness.Plan, output, mapSpec string) []string {
	args := []string{"-hide_banner", "-nostdin", "-nostats", "-y", "-i", file.Path}
	if mapSpec != "" {
		args = append(args, "-map", mapSpec)
	}
	if file.IsVideo() {
		args = append(args, "-vn")
	}
	args = append(args, "-af", plan.Filter())
	if file.IsVideo() {
		args = append(args, "-c:a", extractedCodec, "-b:a", extractedBitrate)
	}
	return append(args, "-ar", outputSampleRate, output)
}

func (p *Pipeline) execute(ctx context.Context, job Job, plan loudness.Plan, selection audio.Selection) error {
	if plan.Mode == loudness.ModeSkip {
		if err := fileutil.CopyPreserving(job.File.Path, job.OutputPath); err != nil {
			return &ExecuteError{Kind: ExecIOFailure, Path: job.OutputPath, Err: err}
		}
		return nil
	}

	tmp := fileutil.TempPath(job.OutputPath)
	mapSpec := ""
	if selection.NeedsMap() {
		mapSpec = selection.MapSpec()
	}
	args := ExecuteArgs(job.File, plan, tmp, mapSpec)
	logging.WithContext(ctx, p.logger).Debug("running normalization",
		logging.String("mode", plan.Mode.String()),
		logging.String("filter", plan.Filter()),
		logging.Any("args", args),
	)

	out, err := p.engine.Run(ctx, p.executeTimeout, args...)
	if err != nil {
		_ = os.Remove(tmp)
		kind := ExecProcessFailed
		if errors.Is(err, ffmpeg.ErrTimeout) {
			kind = ExecTimeout
		}
		return &ExecuteError{Kind: kind, Path: job.OutputPath, Err: err}
	}
	logging.WithContext(ctx, p.logger).Debug("normalization pass finished",
		logging.Duration("engine_elapsed", out.Elapsed),
	)

	info, err := os.Stat(tmp)
	if err != nil {
		return &ExecuteError{Kind: ExecIOFailure, Path: job.OutputPath, Err: fmt.Errorf("engine produced no output: %w", err)}
	}
	if info.Size() == 0 {
		_ = os.Remove(tmp)
		return &ExecuteError{Kind: ExecIOFailure, Path: job.OutputPath, Err: errors.New("engine produced an empty output")}
	}
	if err := fileutil.Commit(tmp, job.OutputPath); err != nil {
		return &ExecuteError{Kind: ExecIOFailure, Path: job.OutputPath, Err: err}
	}
	return nil
}

package deps

import (
	"context"
	"errors"
	"time"

	"levelset/internal/ffmpeg"
)

// EngineCheckTimeout bounds the ffmpeg -version probe.
const EngineCheckTimeout = 5 * time.Second

// versioner is satisfied by *ffmpeg.Runner.
type versioner interface {
	Version(ctx context.Context) (string, error)
}

// CheckEngine runs the engine's version probe and reports whether it can be
// executed. Detail carries the version banner on success.
func CheckEngine(ctx context.Context, binary string) Status {
	return checkEngine(ctx, binary, ffmpeg.NewRunner(binary))
}

func checkEngine(ctx context.Context, binary string, engine versioner) Status {
	status := Status{Requirement: Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Measures loudness and writes normalized outputs",
	}}
	checkCtx, cancel := context.WithTimeout(ctx, EngineCheckTimeout)
	defer cancel()

	version, err := engine.Version(checkCtx)
	switch {
	case err == nil:
		status.Available = true
		status.Detail = version
	case errors.Is(err, ffmpeg.ErrNotFound):
		status.Detail = "not found; install ffmpeg, place it next to levelset, or set ffmpeg.binary"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ffmpeg.ErrTimeout):
		status.Detail = "did not answer -version within " + EngineCheckTimeout.String()
	default:
		status.Detail = err.Error()
	}
	return status
}

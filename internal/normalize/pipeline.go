package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"levelset/internal/ffmpeg"
	"levelset/internal/logging"
	"levelset/internal/loudness"
	"levelset/internal/media"
	"levelset/internal/media/audio"
	"levelset/internal/media/ffprobe"
	"levelset/internal/services"
)

const (
	stageDetect   = "detect"
	stageMeasure  = "measure"
	stagePlan     = "plan"
	stageExecute  = "execute"
	stageClassify = "classify"
)

// DefaultExecuteTimeout bounds the normalization pass.
const DefaultExecuteTimeout = 10 * time.Minute

// Prober inspects container streams before measuring.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Inspect calls f.
func (f ProberFunc) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return f(ctx, path)
}

// FFprobe returns a Prober backed by the ffprobe binary.
func FFprobe(binary string) Prober {
	return ProberFunc(func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Inspect(ctx, binary, path)
	})
}

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	Target          loudness.Target
	AnalysisTimeout time.Duration
	DetailedTimeout time.Duration
	ExecuteTimeout  time.Duration
	// Prober, when set, rejects inputs without an audio stream and picks the
	// primary stream of multi-track containers.
	Prober Prober
	Logger *slog.Logger
}

// Pipeline normalizes single files. It holds no per-file state and is safe
// for concurrent use.
type Pipeline struct {
	engine         loudness.Engine
	measurer       *loudness.Measurer
	prober         Prober
	target         loudness.Target
	executeTimeout time.Duration
	logger         *slog.Logger
}

// New constructs a Pipeline that drives engine for every stage.
func New(engine loudness.Engine, opts Options) *Pipeline {
	target := opts.Target
	if target == (loudness.Target{}) {
		target = loudness.DefaultTarget()
	}
	executeTimeout := opts.ExecuteTimeout
	if executeTimeout <= 0 {
		executeTimeout = DefaultExecuteTimeout
	}
	return &Pipeline{
		engine: engine,
		measurer: loudness.NewMeasurer(engine,
			loudness.WithAnalysisTimeout(opts.AnalysisTimeout),
			loudness.WithDetailedTimeout(opts.DetailedTimeout),
		),
		prober:         opts.Prober,
		target:         target,
		executeTimeout: executeTimeout,
		logger:         logging.NewComponentLogger(opts.Logger, "pipeline"),
	}
}

// Target returns the loudness profile applied to every file.
func (p *Pipeline) Target() loudness.Target {
	return p.target
}

// Run normalizes one file. It always returns an Outcome.
func (p *Pipeline) Run(ctx context.Context, job Job) (outcome Outcome) {
	start := time.Now()
	ctx = services.WithFile(ctx, job.File.Name())
	stage := stageDetect
	outcome = Outcome{File: job.File, OutputPath: job.OutputPath}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during %s: %v", stage, r)
			logging.WithContext(services.WithStage(ctx, stage), p.logger).Error("pipeline panic recovered",
				logging.String(logging.FieldEventType, "pipeline_panic"),
				logging.Error(err),
				logging.String("stack", string(debug.Stack())),
			)
			outcome = p.fail(ctx, outcome, stage, err)
		}
		outcome.Duration = time.Since(start)
	}()

	selection, err := p.detect(services.WithStage(ctx, stage), job.File)
	if err != nil {
		return p.fail(ctx, outcome, stage, err)
	}

	stage = stageMeasure
	analysis, detailed, err := p.measure(services.WithStage(ctx, stage), job.File)
	outcome.Analysis = analysis
	if err != nil {
		return p.fail(ctx, outcome, stage, err)
	}

	stage = stagePlan
	plan := loudness.Decide(analysis, detailed, job.File.Kind, p.target)
	outcome.Plan = plan
	logging.WithContext(services.WithStage(ctx, stage), p.logger).Info("plan decided",
		logging.Args(append(logging.DecisionAttrs("normalization_mode", plan.Mode.String(), plan.Reason),
			logging.Float64("integrated_lufs", analysis.Integrated.Value),
			logging.Float64("adjustment_lu", loudness.Adjustment(analysis, p.target)),
			logging.String("mode", plan.Mode.String()),
		)...)...,
	)

	stage = stageExecute
	if err := p.execute(services.WithStage(ctx, stage), job, plan, selection); err != nil {
		return p.fail(ctx, outcome, stage, err)
	}

	stage = stageClassify
	outcome.Status = StatusSuccess
	message := "normalized"
	if plan.Mode == loudness.ModeSkip {
		outcome.Status = StatusSkipped
		message = "already at target, copied"
	}
	outcome.Reason = plan.Reason
	logging.WithContext(services.WithStage(ctx, stage), p.logger).Info(message,
		logging.String(logging.FieldEventType, "file_complete"),
		logging.String("status", outcome.Status.String()),
		logging.String("mode", plan.Mode.String()),
		logging.Float64("adjustment_lu", loudness.Adjustment(analysis, p.target)),
		logging.Duration("duration", time.Since(start)),
		logging.String("output_path", job.OutputPath),
	)
	return outcome
}

func (p *Pipeline) detect(ctx context.Context, file media.File) (audio.Selection, error) {
	if file.Kind == media.KindUnknown {
		return audio.Selection{}, services.Wrap(services.ErrValidation, stageDetect, "classify", "", fmt.Errorf("%w: %s", media.ErrUnsupported, file.Name()))
	}
	if p.prober == nil {
		return audio.Selection{Ordinal: -1}, nil
	}
	result, err := p.prober.Inspect(ctx, file.Path)
	if err != nil {
		return audio.Selection{}, services.Wrap(services.ErrExternalTool, stageDetect, "ffprobe", "", err)
	}
	selection := audio.Select(result.Streams)
	if !selection.Found() {
		return audio.Selection{}, services.Wrap(services.ErrValidation, stageDetect, "", "no audio stream", nil)
	}
	if selection.NeedsMap() {
		logging.WithContext(ctx, p.logger).Debug("audio stream selected",
			logging.String("stream", selection.Label()),
			logging.Int("audio_streams", selection.Count),
		)
	}
	return selection, nil
}

// measure runs the analysis pass and, unless the file will be skipped, the
// detailed statistics pass. Only a detailed-pass timeout is fatal; any other
// detailed failure downgrades the plan to a single pass.
func (p *Pipeline) measure(ctx context.Context, file media.File) (loudness.Measurement, loudness.Measurement, error) {
	logger := logging.WithContext(ctx, p.logger)
	analysis, err := p.measurer.Measure(ctx, file.Path)
	if err != nil {
		return loudness.Measurement{}, loudness.Measurement{}, err
	}
	logger.Debug("analysis pass complete",
		logging.Float64("integrated_lufs", analysis.Integrated.Value),
		logging.String(logging.FieldEventType, "measure_analysis"),
	)
	if loudness.WithinTolerance(analysis, file.Kind, p.target) {
		return analysis, loudness.Measurement{}, nil
	}

	detailed, err := p.measurer.MeasureDetailed(ctx, file.Path, p.target)
	if err != nil {
		if errors.Is(err, loudness.ErrTimeout) || ctx.Err() != nil {
			return analysis, loudness.Measurement{}, err
		}
		logging.WarnWithContext(logger, "detailed statistics unavailable; falling back to single pass", "measure_detailed_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "dynamic normalization instead of linear"),
			logging.String(logging.FieldErrorHint, "inspect ffmpeg output in the log file"),
		)
		return analysis, loudness.Measurement{}, nil
	}
	logger.Debug("detailed pass complete",
		logging.Float64("integrated_lufs", detailed.Integrated.Value),
		logging.Float64("true_peak_dbtp", detailed.TruePeak.Value),
		logging.Float64("loudness_range_lu", detailed.Range.Value),
		logging.Float64("threshold_lufs", detailed.Threshold.Value),
	)
	return analysis, detailed, nil
}

func (p *Pipeline) fail(ctx context.Context, outcome Outcome, stage string, err error) Outcome {
	outcome.Status = StatusFailed
	outcome.Err = err
	outcome.Reason = describeFailure(ctx, err)
	logging.ErrorWithContext(logging.WithContext(services.WithStage(ctx, stage), p.logger), "file failed", "file_failed",
		logging.String("status", outcome.Status.String()),
		logging.String("reason", outcome.Reason),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(hintMarker(err))),
	)
	return outcome
}

// describeFailure turns a stage error into the reason shown to the user.
func describeFailure(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return "batch cancelled"
	}
	var measureErr *loudness.MeasureError
	if errors.As(err, &measureErr) {
		switch measureErr.Kind {
		case loudness.KindInconclusive:
			return "loudness could not be measured (silent or corrupt input?)"
		case loudness.KindUnparseable:
			return "engine reported no loudness statistics"
		case loudness.KindTimeout:
			return measureErr.Pass + " measurement timed out"
		default:
			return "engine failed during " + measureErr.Pass + " measurement: " + causeText(measureErr.Err)
		}
	}
	var execErr *ExecuteError
	if errors.As(err, &execErr) {
		switch execErr.Kind {
		case ExecTimeout:
			return "normalization timed out"
		case ExecIOFailure:
			return "output could not be written: " + causeText(execErr.Err)
		default:
			return "normalization failed: " + causeText(execErr.Err)
		}
	}
	switch {
	case errors.Is(err, media.ErrUnsupported):
		return "unsupported file type"
	case errors.Is(err, services.ErrValidation):
		return "no audio stream"
	}
	return err.Error()
}

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// hintMarker maps pipeline errors onto the shared service markers.
func hintMarker(err error) error {
	switch {
	case errors.Is(err, loudness.ErrTimeout), errors.Is(err, ErrExecuteTimeout):
		return services.ErrTimeout
	case errors.Is(err, ErrIOFailure):
		return services.ErrIO
	case errors.Is(err, ffmpeg.ErrNotFound):
		return services.ErrNotFound
	case errors.Is(err, loudness.ErrInconclusive):
		return services.ErrValidation
	default:
		return err
	}
}

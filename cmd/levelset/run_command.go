package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"levelset/internal/batch"
	"levelset/internal/config"
	"levelset/internal/ffmpeg"
	"levelset/internal/history"
	"levelset/internal/logging"
	"levelset/internal/loudness"
	"levelset/internal/media"
	"levelset/internal/normalize"
	"levelset/internal/preflight"
)

// errConfirmationRequired is returned when stdin cannot answer the prompt.
var errConfirmationRequired = errors.New("confirmation required; rerun with --yes to normalize without prompting")

type runOptions struct {
	target    float64
	assumeYes bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [directory]",
		Short: "Normalize every supported file in a directory",
		Long: "Measure each audio and video file in the directory, normalize it to the target\n" +
			"loudness, and write the results into the configured output subdirectory.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			targetLUFS := cfg.Loudness.TargetLUFS
			if cmd.Flags().Changed("target") {
				targetLUFS = opts.target
			}
			target, err := loudness.NewTarget(targetLUFS)
			if err != nil {
				return err
			}
			inputDir := cfg.Paths.InputDir
			if len(args) == 1 {
				inputDir = args[0]
			}
			inputDir, err = config.ExpandPath(inputDir)
			if err != nil {
				return fmt.Errorf("resolve input directory: %w", err)
			}
			return runBatch(cmd, cfg, inputDir, target, opts.assumeYes)
		},
	}

	cmd.Flags().Float64VarP(&opts.target, "target", "t", loudness.DefaultTargetLUFS,
		fmt.Sprintf("Integrated loudness target in LUFS (%s)", loudness.SupportedTargetList()))
	cmd.Flags().BoolVarP(&opts.assumeYes, "yes", "y", false, "Start without asking for confirmation")
	return cmd
}

func runBatch(cmd *cobra.Command, cfg *config.Config, inputDir string, target loudness.Target, assumeYes bool) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	colorize := shouldColorize(out)

	outputDir := cfg.OutputDir(inputDir)
	files, err := media.Discover(inputDir)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	if failed := preflight.Failed(preflight.RunAll(parent, cfg, inputDir)); len(failed) > 0 {
		for _, line := range renderSectionHeader("Preflight", colorize) {
			fmt.Fprintln(errOut, line)
		}
		for _, result := range failed {
			fmt.Fprintln(errOut, renderStatusLine(result.Name, statusError, result.Detail, colorize))
		}
		return fmt.Errorf("preflight failed: %d check(s) did not pass (run `levelset check` for details)", len(failed))
	}

	if len(files) > 0 && !assumeYes {
		question := fmt.Sprintf("Normalize %d file(s) in %s to %s LUFS into %s?", len(files), inputDir, formatLUFS(target.IntegratedLUFS), outputDir)
		ok, err := confirm(cmd.InOrStdin(), out, question)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled; no files were changed.")
			return nil
		}
	}

	lockPath := cfg.LockPath(outputDir)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another levelset batch is already writing to %s", outputDir)
	}
	defer func() { _ = lock.Unlock() }()

	started := time.Now()
	runID := uuid.NewString()
	fileLogger, logPath, err := logging.NewFromConfig(cfg, started, runID)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	events := batch.NewEvents(batch.DefaultLogBuffer)
	logger := events.Logger(fileLogger, slog.LevelInfo)

	ffmpegBinary := ffmpeg.ResolveBinary(cfg.FFmpeg.Binary)
	pipelineOpts := normalize.Options{
		Target:          target,
		AnalysisTimeout: cfg.AnalysisTimeout(),
		DetailedTimeout: cfg.ExecuteTimeout(),
		ExecuteTimeout:  cfg.ExecuteTimeout(),
		Logger:          logger,
	}
	if cfg.FFmpeg.ProbeInputs {
		pipelineOpts.Prober = normalize.FFprobe(ffmpeg.ResolveProbeBinary(cfg.FFmpeg.FFprobeBinary, ffmpegBinary))
	}
	pipeline := normalize.New(ffmpeg.NewRunner(ffmpegBinary), pipelineOpts)
	scheduler := batch.New(pipeline, batch.Options{
		RunID:  runID,
		Logger: logger,
		Events: events,
	})
	logger.Debug("batch configured",
		logging.String("input_dir", inputDir),
		logging.String("ffmpeg", ffmpegBinary),
		logging.String("target", target.String()),
		logging.String("log_path", logPath),
	)

	runCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runDone := make(chan struct{})
	defer close(runDone)
	go func() {
		select {
		case <-runCtx.Done():
			// A second signal terminates the process.
			stop()
			logging.WarnWithContext(logger, "interrupted; finishing files already in progress", "batch_interrupted",
				logging.String(logging.FieldImpact, "files not yet started are reported as failed"),
				logging.String(logging.FieldErrorHint, "press Ctrl-C again to abort immediately"),
			)
		case <-runDone:
		}
	}()

	interactive := shouldColorize(errOut)
	view := newPresenter(errOut, len(files), interactive, interactive)
	presented := make(chan struct{})
	go func() {
		defer close(presented)
		view.consume(scheduler.Logs(), scheduler.Progress())
	}()

	report, runErr := scheduler.Run(runCtx, files, outputDir)
	<-presented
	if runErr != nil {
		return runErr
	}

	if cfg.History.Enabled {
		recordHistory(parent, fileLogger, cfg.History.Path, report, inputDir, target)
	}
	logging.CleanupOldLogs(fileLogger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)

	renderReport(out, report, target, logPath, colorize)
	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d file(s) failed; see %s", report.Failed(), report.Total, logPath)
	}
	return nil
}

func recordHistory(ctx context.Context, logger *slog.Logger, path string, report batch.Report, inputDir string, target loudness.Target) {
	store, err := history.Open(path)
	if err == nil {
		defer store.Close()
		run, files := history.FromReport(report, inputDir, target)
		err = store.Record(ctx, run, files)
	}
	if err != nil {
		logging.WarnWithContext(logger, "batch history not recorded", "history_record_failed",
			logging.Error(err),
			logging.String("history_path", path),
			logging.String(logging.FieldImpact, "run will be missing from `levelset history`"),
			logging.String(logging.FieldErrorHint, "check history.path permissions or set history.enabled = false"),
		)
	}
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if file, ok := in.(*os.File); ok && !isTerminal(file.Fd()) {
		return false, errConfirmationRequired
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read confirmation: %w", err)
		}
		if answer == "" {
			return false, errConfirmationRequired
		}
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"levelset/internal/fileutil"
	"levelset/internal/logging"
	"levelset/internal/media"
	"levelset/internal/normalize"
	"levelset/internal/services"
)

// ErrAlreadyRun is returned when Run is called twice on one Scheduler.
var ErrAlreadyRun = errors.New("scheduler already ran a batch")

const cancelledReason = "batch cancelled"

// Runner normalizes one file. *normalize.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, job normalize.Job) normalize.Outcome
}

// Options configures a Scheduler. Zero values select defaults.
type Options struct {
	// Workers bounds parallelism; <= 0 selects runtime.NumCPU().
	Workers int
	// RunID tags the batch; empty generates a UUID.
	RunID  string
	Logger *slog.Logger
	// Events receives the live streams. Logger is expected to come from
	// Events.Logger, as should the runner's, so pipeline records reach the
	// log stream. When nil, the scheduler allocates one and tees Logger into it.
	Events *Events
}

// Scheduler runs one batch of file pipelines on a fixed worker pool.
type Scheduler struct {
	runner  Runner
	workers int
	runID   string
	events  *Events
	logger  *slog.Logger

	mu       sync.Mutex
	counters Counters
	sampler  *logging.ProgressSampler
	started  bool
}

// New constructs a Scheduler that hands every file to runner.
func New(runner Runner, opts Options) *Scheduler {
	events := opts.Events
	logger := opts.Logger
	if events == nil {
		events = NewEvents(DefaultLogBuffer)
		logger = events.Logger(logger, slog.LevelInfo)
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Scheduler{
		runner:  runner,
		workers: opts.Workers,
		runID:   runID,
		events:  events,
		logger:  logging.NewComponentLogger(logger, "batch"),
		sampler: logging.NewProgressSampler(10),
	}
}

// RunID returns the batch identifier.
func (s *Scheduler) RunID() string { return s.runID }

// Logs returns the live log-line stream. It closes when Run returns.
func (s *Scheduler) Logs() <-chan string { return s.events.Logs() }

// Progress returns the live completed-count stream. It closes when Run returns.
func (s *Scheduler) Progress() <-chan int { return s.events.Progress() }

// Counters returns a snapshot of the completion counters.
func (s *Scheduler) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Run normalizes files into outputDir and blocks until every file has an
// outcome. Cancelling ctx stops dispatch; files not yet started are reported
// as failed and files already running finish. The only errors are a second
// call and failure to create outputDir.
func (s *Scheduler) Run(ctx context.Context, files []media.File, outputDir string) (Report, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return Report{}, ErrAlreadyRun
	}
	s.started = true
	s.mu.Unlock()
	defer s.events.close()

	ctx = services.WithRunID(ctx, s.runID)
	logger := logging.WithContext(ctx, s.logger)
	report := Report{
		RunID:     s.runID,
		OutputDir: outputDir,
		Started:   time.Now(),
		Total:     len(files),
		Outcomes:  make([]normalize.Outcome, len(files)),
	}

	if len(files) == 0 {
		logger.Info("no supported media files found", logging.String(logging.FieldEventType, "batch_empty"))
		report.Finished = time.Now()
		return report, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		report.Finished = time.Now()
		wrapped := services.Wrap(services.ErrIO, "batch", "create output directory", outputDir, err)
		logging.ErrorWithContext(logger, "output directory unavailable", "batch_output_dir_failed",
			logging.String("output_dir", outputDir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(services.ErrIO)),
		)
		return report, wrapped
	}
	if removed, err := fileutil.RemoveStale(outputDir); err != nil {
		logging.WarnWithContext(logger, "stale temp cleanup failed", "batch_stale_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "leftover partial files may remain in the output directory"),
		)
	} else if removed > 0 {
		logger.Info("removed partial outputs from an interrupted run", logging.Int("removed", removed))
	}

	outputs := media.AssignOutputs(files, outputDir)
	workers := s.workerCount(len(files))
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("files", len(files)),
		logging.Int("workers", workers),
		logging.String("output_dir", outputDir),
	)

	// In-flight files finish even when ctx is cancelled.
	jobCtx := context.WithoutCancel(ctx)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcome := s.runOne(jobCtx, normalize.Job{File: files[i], OutputPath: outputs[i]})
				report.Outcomes[i] = outcome
				s.record(logger, outcome, len(files))
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range files {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if dispatched < len(files) {
		logging.WarnWithContext(logger, "batch cancelled; remaining files not started", "batch_cancelled",
			logging.Int("not_started", len(files)-dispatched),
			logging.String(logging.FieldImpact, "remaining files reported as failed"),
		)
		for i := dispatched; i < len(files); i++ {
			outcome := normalize.Outcome{
				File:       files[i],
				Status:     normalize.StatusFailed,
				Reason:     cancelledReason,
				OutputPath: outputs[i],
				Err:        context.Cause(ctx),
			}
			report.Outcomes[i] = outcome
			s.record(logger, outcome, len(files))
		}
	}

	report.Counters = s.Counters()
	report.Finished = time.Now()
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("succeeded", report.Counters.Succeeded),
		logging.Int("failed", report.Counters.Failed),
		logging.Int("total", report.Total),
		logging.Duration("duration", report.Duration()),
	)
	return report, nil
}

func (s *Scheduler) runOne(ctx context.Context, job normalize.Job) (outcome normalize.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logging.ErrorWithContext(logging.WithContext(services.WithFile(ctx, job.File.Name()), s.logger), "file pipeline panicked", "batch_job_panic",
				logging.Error(err),
				logging.String("stack", string(debug.Stack())),
			)
			outcome = normalize.Outcome{
				File:       job.File,
				Status:     normalize.StatusFailed,
				Reason:     "internal error: " + fmt.Sprint(r),
				OutputPath: job.OutputPath,
				Err:        err,
			}
		}
	}()
	return s.runner.Run(ctx, job)
}

// record updates the counters and publishes progress atomically.
func (s *Scheduler) record(logger *slog.Logger, outcome normalize.Outcome, total int) {
	s.mu.Lock()
	s.counters.Completed++
	if outcome.Status.Succeeded() {
		s.counters.Succeeded++
	} else {
		s.counters.Failed++
	}
	snapshot := s.counters
	s.events.publishProgress(snapshot.Completed)
	shouldLog := s.sampler.ShouldLog(snapshot.Completed, total)
	s.mu.Unlock()

	if shouldLog {
		logger.Info("batch progress",
			logging.String(logging.FieldEventType, "batch_progress"),
			logging.Int("completed", snapshot.Completed),
			logging.Int("total", total),
			logging.Int("succeeded", snapshot.Succeeded),
			logging.Int("failed", snapshot.Failed),
		)
	}
}

func (s *Scheduler) workerCount(files int) int {
	workers := s.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > files {
		workers = files
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

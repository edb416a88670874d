package batch

import (
	"log/slog"
	"sync"

	"levelset/internal/logging"
)

// DefaultLogBuffer is the number of log lines retained for a slow consumer.
const DefaultLogBuffer = 256

// Events carries the live log and progress streams of one batch.
type Events struct {
	mu       sync.Mutex
	logs     chan string
	progress chan int
	dropped  int
	closed   bool
}

// NewEvents allocates streams holding up to logBuffer unread log lines.
func NewEvents(logBuffer int) *Events {
	if logBuffer <= 0 {
		logBuffer = DefaultLogBuffer
	}
	return &Events{
		logs:     make(chan string, logBuffer),
		progress: make(chan int, 1),
	}
}

// Logs returns the log-line stream.
func (e *Events) Logs() <-chan string {
	return e.logs
}

// Progress returns the completed-count stream. Only the latest unread value
// is retained.
func (e *Events) Progress() <-chan int {
	return e.progress
}

// Dropped reports how many log lines were discarded because the buffer was full.
func (e *Events) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Logger returns base extended with a handler that renders records at or
// above level into the log stream.
func (e *Events) Logger(base *slog.Logger, level slog.Level) *slog.Logger {
	return logging.TeeLogger(base, logging.NewEventHandler(e.publishLog, level))
}

func (e *Events) publishLog(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for {
		select {
		case e.logs <- line:
			return
		default:
		}
		select {
		case <-e.logs:
			e.dropped++
		default:
		}
	}
}

func (e *Events) publishProgress(completed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for {
		select {
		case e.progress <- completed:
			return
		default:
		}
		select {
		case <-e.progress:
		default:
		}
	}
}

func (e *Events) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.logs)
	close(e.progress)
}

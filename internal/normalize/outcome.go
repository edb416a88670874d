package normalize

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"levelset/internal/loudness"
	"levelset/internal/media"
)

// Job is one file to normalize and where its output goes.
type Job struct {
	File       media.File
	OutputPath string
}

// Status is the terminal state of a file.
type Status int

const (
	StatusSuccess Status = iota + 1
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Succeeded reports whether the status counts toward the success total.
// Skipped files were copied unchanged, which is a successful result.
func (s Status) Succeeded() bool {
	return s == StatusSuccess || s == StatusSkipped
}

// Outcome is the result for one file.
type Outcome struct {
	File       media.File
	Status     Status
	Reason     string
	OutputPath string
	Plan       loudness.Plan
	Analysis   loudness.Measurement
	Err        error
	Duration   time.Duration
}

var (
	ErrExecuteFailed  = errors.New("normalization process failed")
	ErrExecuteTimeout = errors.New("normalization timed out")
	ErrIOFailure      = errors.New("output could not be written")
)

// ExecuteKind classifies an ExecuteError.
type ExecuteKind int

const (
	ExecProcessFailed ExecuteKind = iota + 1
	ExecTimeout
	ExecIOFailure
)

func (k ExecuteKind) String() string {
	switch k {
	case ExecProcessFailed:
		return "process_failed"
	case ExecTimeout:
		return "timeout"
	case ExecIOFailure:
		return "io_failure"
	default:
		return "unknown"
	}
}

func (k ExecuteKind) sentinel() error {
	switch k {
	case ExecTimeout:
		return ErrExecuteTimeout
	case ExecIOFailure:
		return ErrIOFailure
	default:
		return ErrExecuteFailed
	}
}

// ExecuteError reports why the execute stage produced no output.
type ExecuteError struct {
	Kind ExecuteKind
	Path string
	Err  error
}

func (e *ExecuteError) Error() string {
	msg := fmt.Sprintf("execute %s: %s", filepath.Base(e.Path), e.Kind.sentinel())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ExecuteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

package loudness

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	ErrProcessFailed = errors.New("measurement process failed")
	ErrUnparseable   = errors.New("measurement output unparseable")
	ErrInconclusive  = errors.New("measurement inconclusive")
	ErrTimeout       = errors.New("measurement timed out")
)

// ErrorKind classifies a MeasureError.
type ErrorKind int

const (
	KindProcessFailed ErrorKind = iota + 1
	KindUnparseable
	KindInconclusive
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindProcessFailed:
		return "process_failed"
	case KindUnparseable:
		return "unparseable"
	case KindInconclusive:
		return "inconclusive"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnparseable:
		return ErrUnparseable
	case KindInconclusive:
		return ErrInconclusive
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrProcessFailed
	}
}

// MeasureError reports why a measurement pass produced no usable result.
type MeasureError struct {
	Kind ErrorKind
	Pass string
	Path string
	Err  error
}

func (e *MeasureError) Error() string {
	msg := fmt.Sprintf("%s pass on %s: %s", e.Pass, filepath.Base(e.Path), e.Kind.sentinel())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *MeasureError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf extracts the MeasureError kind from err, or 0 when err is not one.
func KindOf(err error) ErrorKind {
	var measureErr *MeasureError
	if errors.As(err, &measureErr) {
		return measureErr.Kind
	}
	return 0
}

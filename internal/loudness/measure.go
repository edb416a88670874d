package loudness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"levelset/internal/ffmpeg"
)

// Engine runs one ffmpeg invocation; *ffmpeg.Runner satisfies it.
type Engine interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) (ffmpeg.Output, error)
}

const (
	// DefaultAnalysisTimeout bounds the minimal first pass.
	DefaultAnalysisTimeout = 5 * time.Minute
	// DefaultDetailedTimeout bounds the detailed statistics pass.
	DefaultDetailedTimeout = 10 * time.Minute
)

const (
	passAnalysis = "analysis"
	passDetailed = "detailed"
)

// Measurer runs loudnorm in analysis mode against single files.
type Measurer struct {
	engine          Engine
	analysisTimeout time.Duration
	detailedTimeout time.Duration
	silenceFloor    float64
}

// MeasurerOption customizes a Measurer.
type MeasurerOption func(*Measurer)

// WithAnalysisTimeout overrides the first-pass timeout.
func WithAnalysisTimeout(d time.Duration) MeasurerOption {
	return func(m *Measurer) {
		if d > 0 {
			m.analysisTimeout = d
		}
	}
}

// WithDetailedTimeout overrides the detailed-statistics timeout.
func WithDetailedTimeout(d time.Duration) MeasurerOption {
	return func(m *Measurer) {
		if d > 0 {
			m.detailedTimeout = d
		}
	}
}

// NewMeasurer constructs a Measurer around engine.
func NewMeasurer(engine Engine, opts ...MeasurerOption) *Measurer {
	m := &Measurer{
		engine:          engine,
		analysisTimeout: DefaultAnalysisTimeout,
		detailedTimeout: DefaultDetailedTimeout,
		silenceFloor:    SilenceFloor,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Measure runs the minimal analysis pass used to decide whether a file needs
// normalizing at all. Only integrated loudness is required.
func (m *Measurer) Measure(ctx context.Context, path string) (Measurement, error) {
	measurement, err := m.run(ctx, passAnalysis, path, AnalysisArgs(path))
	if err != nil {
		return Measurement{}, err
	}
	if !measurement.Integrated.Present {
		return Measurement{}, &MeasureError{Kind: KindUnparseable, Pass: passAnalysis, Path: path, Err: errors.New("input_i missing from statistics")}
	}
	if !measurement.Integrated.Finite() || measurement.Integrated.Value < m.silenceFloor {
		return Measurement{}, &MeasureError{
			Kind: KindInconclusive,
			Pass: passAnalysis,
			Path: path,
			Err:  fmt.Errorf("integrated loudness %s LUFS is below %s LUFS (silent or corrupt input?)", measurement.Integrated, formatNumber(m.silenceFloor)),
		}
	}
	return measurement, nil
}

// MeasureDetailed runs the targeted statistics pass whose four input values
// feed a linear two-pass normalization. An incomplete block is Unparseable.
func (m *Measurer) MeasureDetailed(ctx context.Context, path string, target Target) (Measurement, error) {
	measurement, err := m.run(ctx, passDetailed, path, DetailedArgs(path, target))
	if err != nil {
		return Measurement{}, err
	}
	if !measurement.Complete() {
		return measurement, &MeasureError{Kind: KindUnparseable, Pass: passDetailed, Path: path, Err: errors.New("statistics block is missing fields")}
	}
	return measurement, nil
}

func (m *Measurer) run(ctx context.Context, pass, path string, args []string) (Measurement, error) {
	if m == nil || m.engine == nil {
		return Measurement{}, &MeasureError{Kind: KindProcessFailed, Pass: pass, Path: path, Err: errors.New("no engine configured")}
	}
	timeout := m.analysisTimeout
	if pass == passDetailed {
		timeout = m.detailedTimeout
	}
	out, err := m.engine.Run(ctx, timeout, args...)
	if err != nil {
		kind := KindProcessFailed
		if errors.Is(err, ffmpeg.ErrTimeout) {
			kind = KindTimeout
		}
		return Measurement{}, &MeasureError{Kind: kind, Pass: pass, Path: path, Err: err}
	}
	measurement, err := ExtractStats(out.Stderr)
	if err != nil {
		return Measurement{}, &MeasureError{Kind: KindUnparseable, Pass: pass, Path: path, Err: err}
	}
	return measurement, nil
}

// AnalysisArgs builds the minimal first-pass invocation.
func AnalysisArgs(path string) []string {
	return analysisInvocation(path, "loudnorm=print_format=json")
}

// DetailedArgs builds the statistics pass parameterized by target.
func DetailedArgs(path string, target Target) []string {
	return analysisInvocation(path, target.baseFilter()+":print_format=json")
}

func analysisInvocation(path, filter string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-nostats",
		"-i", path,
		"-vn",
		"-af", filter,
		"-f", "null", "-",
	}
}

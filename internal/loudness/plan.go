package loudness

import (
	"fmt"
	"math"
	"strings"

	"levelset/internal/media"
)

// Mode is the normalization strategy chosen for a file.
type Mode int

const (
	ModeSkip Mode = iota + 1
	ModeSinglePass
	ModeTwoPass
)

func (m Mode) String() string {
	switch m {
	case ModeSkip:
		return "skip"
	case ModeSinglePass:
		return "single_pass"
	case ModeTwoPass:
		return "two_pass"
	default:
		return "unknown"
	}
}

// Plan is the immutable decision for one file. Measured is only meaningful
// for ModeTwoPass.
type Plan struct {
	Mode     Mode
	Target   Target
	Measured Measurement
	Reason   string
}

// WithinTolerance reports whether an audio file is already close enough to the
// target to be copied verbatim. Video inputs always need converting to an
// audio-only output, so they never qualify.
func WithinTolerance(analysis Measurement, kind media.Kind, target Target) bool {
	if kind != media.KindAudio || !analysis.Integrated.Finite() {
		return false
	}
	return math.Abs(target.IntegratedLUFS-analysis.Integrated.Value) < SkipTolerance
}

// Decide chooses the plan for a file from its first-pass analysis and, when
// one was obtained, its detailed statistics. Pass a zero Measurement for
// detailed when the statistics pass failed or was not run.
func Decide(analysis, detailed Measurement, kind media.Kind, target Target) Plan {
	if WithinTolerance(analysis, kind, target) {
		return Plan{
			Mode:   ModeSkip,
			Target: target,
			Reason: fmt.Sprintf("already within %s LU of target", formatNumber(SkipTolerance)),
		}
	}
	if detailed.Complete() {
		return Plan{
			Mode:     ModeTwoPass,
			Target:   target,
			Measured: detailed,
			Reason:   "detailed statistics available",
		}
	}
	return Plan{
		Mode:   ModeSinglePass,
		Target: target,
		Reason: "detailed statistics unavailable",
	}
}

// Filter renders the loudnorm expression for the plan; empty for ModeSkip.
func (p Plan) Filter() string {
	switch p.Mode {
	case ModeSinglePass:
		return p.Target.baseFilter()
	case ModeTwoPass:
		var b strings.Builder
		b.WriteString(p.Target.baseFilter())
		fmt.Fprintf(&b, ":measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:linear=true",
			formatNumber(p.Measured.Integrated.Value),
			formatNumber(p.Measured.TruePeak.Value),
			formatNumber(p.Measured.Range.Value),
			formatNumber(p.Measured.Threshold.Value),
		)
		return b.String()
	default:
		return ""
	}
}

// Adjustment is the gain the plan aims for relative to the first-pass reading.
func Adjustment(analysis Measurement, target Target) float64 {
	if !analysis.Integrated.Finite() {
		return 0
	}
	return target.IntegratedLUFS - analysis.Integrated.Value
}

func (t Target) baseFilter() string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s", formatNumber(t.IntegratedLUFS), formatNumber(t.TruePeak), formatNumber(t.LoudnessRange))
}

package loudness

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultTargetLUFS is the conservative default integrated loudness.
	DefaultTargetLUFS = -16.0
	// DefaultTruePeak is the true-peak ceiling in dBTP applied to every output.
	DefaultTruePeak = -1.5
	// DefaultLoudnessRange is the loudness range target in LU.
	DefaultLoudnessRange = 11.0
	// SkipTolerance is the distance in LU under which audio inputs are copied.
	SkipTolerance = 1.0
	// SilenceFloor is the integrated loudness below which a measurement is
	// treated as silent or corrupt input.
	SilenceFloor = -70.0
)

// SupportedTargets lists the selectable integrated loudness targets.
var SupportedTargets = []float64{-16, -14, -12}

// Target is the process-wide loudness profile for one batch.
type Target struct {
	IntegratedLUFS float64
	TruePeak       float64
	LoudnessRange  float64
}

// DefaultTarget returns the -16 LUFS profile.
func DefaultTarget() Target {
	return Target{IntegratedLUFS: DefaultTargetLUFS, TruePeak: DefaultTruePeak, LoudnessRange: DefaultLoudnessRange}
}

// NewTarget builds a profile for one of the SupportedTargets.
func NewTarget(lufs float64) (Target, error) {
	if !IsSupportedTarget(lufs) {
		return Target{}, fmt.Errorf("target %s LUFS is not supported (choose one of %s)", formatNumber(lufs), SupportedTargetList())
	}
	return Target{IntegratedLUFS: lufs, TruePeak: DefaultTruePeak, LoudnessRange: DefaultLoudnessRange}, nil
}

// IsSupportedTarget reports whether lufs is one of the selectable targets.
func IsSupportedTarget(lufs float64) bool {
	for _, candidate := range SupportedTargets {
		if math.Abs(candidate-lufs) < 1e-9 {
			return true
		}
	}
	return false
}

// SupportedTargetList renders the selectable targets as "-16, -14, -12".
func SupportedTargetList() string {
	parts := make([]string, 0, len(SupportedTargets))
	for _, t := range SupportedTargets {
		parts = append(parts, formatNumber(t))
	}
	return strings.Join(parts, ", ")
}

func (t Target) String() string {
	return fmt.Sprintf("%s LUFS (TP %s dBTP, LRA %s LU)", formatNumber(t.IntegratedLUFS), formatNumber(t.TruePeak), formatNumber(t.LoudnessRange))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package loudness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metric is a measured value that may be absent.
type Metric struct {
	Value   float64
	Present bool
}

// Known returns a present metric.
func Known(v float64) Metric {
	return Metric{Value: v, Present: true}
}

// Finite reports whether the metric is present and a real number.
func (m Metric) Finite() bool {
	return m.Present && !math.IsInf(m.Value, 0) && !math.IsNaN(m.Value)
}

func (m Metric) String() string {
	if !m.Present {
		return "n/a"
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

// Measurement holds loudnorm's input statistics for one file.
type Measurement struct {
	Integrated Metric // LUFS
	TruePeak   Metric // dBTP
	Range      Metric // LU
	Threshold  Metric // LUFS
}

// Complete reports whether all four statistics are present and finite, which
// is what a linear two-pass normalization needs.
func (m Measurement) Complete() bool {
	return m.Integrated.Finite() && m.TruePeak.Finite() && m.Range.Finite() && m.Threshold.Finite()
}

const (
	// statsTailBytes is how far back from the end of the diagnostic output the
	// statistics block is searched for.
	statsTailBytes = 64 << 10
	// maxBlockCandidates bounds how many closing braces are tried.
	maxBlockCandidates = 64
)

// ExtractStats locates loudnorm's JSON statistics block in ffmpeg's diagnostic
// output and decodes it.
//
// ffmpeg interleaves free-form log text with the block, so the tail of the
// output is scanned for the last balanced outermost {...} span that decodes as
// a JSON object carrying "input_i". Stray braces in log text are tolerated: a
// span that fails to decode is skipped and an earlier closing brace is tried.
// A missing or truncated block yields ErrUnparseable. Fields missing from a
// decoded block are reported as absent metrics rather than as an error.
func ExtractStats(output []byte) (Measurement, error) {
	if len(output) > statsTailBytes {
		output = output[len(output)-statsTailBytes:]
	}
	end := len(output)
	for attempt := 0; attempt < maxBlockCandidates; attempt++ {
		closing := bytes.LastIndexByte(output[:end], '}')
		if closing < 0 {
			break
		}
		end = closing
		opening := matchingOpen(output, closing)
		if opening < 0 {
			continue
		}
		fields, ok := decodeBlock(output[opening : closing+1])
		if !ok {
			continue
		}
		return measurementFromFields(fields), nil
	}
	return Measurement{}, fmt.Errorf("%w: no loudnorm statistics block in engine output", ErrUnparseable)
}

// matchingOpen walks backwards from the closing brace at idx and returns the
// index of the brace that balances it, or -1.
func matchingOpen(data []byte, idx int) int {
	depth := 0
	for i := idx; i >= 0; i-- {
		switch data[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeBlock(block []byte) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(block, &fields); err != nil {
		return nil, false
	}
	if _, ok := fields["input_i"]; !ok {
		return nil, false
	}
	return fields, true
}

func measurementFromFields(fields map[string]json.RawMessage) Measurement {
	return Measurement{
		Integrated: metricField(fields, "input_i"),
		TruePeak:   metricField(fields, "input_tp"),
		Range:      metricField(fields, "input_lra"),
		Threshold:  metricField(fields, "input_thresh"),
	}
}

// metricField accepts both loudnorm's quoted numbers ("-23.54", "-inf") and
// bare JSON numbers.
func metricField(fields map[string]json.RawMessage, key string) Metric {
	raw, ok := fields[key]
	if !ok {
		return Metric{}
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return Metric{}
	}
	return Known(value)
}

package loudness

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const sampleBlock = `{
	"input_i" : "-20.35",
	"input_tp" : "-3.12",
	"input_lra" : "6.40",
	"input_thresh" : "-30.61",
	"output_i" : "-14.02",
	"output_tp" : "-1.50",
	"output_lra" : "5.90",
	"output_thresh" : "-24.20",
	"normalization_type" : "dynamic",
	"target_offset" : "0.02"
}`

func engineOutput(block string) []byte {
	var b strings.Builder
	b.WriteString("Input #0, mp3, from 'song.mp3':\n")
	b.WriteString("  Metadata: {title} by {artist}\n")
	b.WriteString("  Stream #0:0: Audio: mp3, 44100 Hz, stereo, fltp, 320 kb/s\n")
	b.WriteString("size=N/A time=00:03:12.00 bitrate=N/A speed= 412x\n")
	b.WriteString("[Parsed_loudnorm_0 @ 0x55d1c7a4c0c0] \n")
	b.WriteString(block)
	b.WriteString("\n[out#0/null @ 0x55d1c7a3f2c0] video:0kB audio:36000kB\n")
	return []byte(b.String())
}

func TestExtractStatsFindsBlockAmongLogLines(t *testing.T) {
	m, err := ExtractStats(engineOutput(sampleBlock))
	if err != nil {
		t.Fatalf("ExtractStats: %v", err)
	}
	if !m.Complete() {
		t.Fatalf("expected complete measurement, got %#v", m)
	}
	if m.Integrated.Value != -20.35 || m.TruePeak.Value != -3.12 || m.Range.Value != 6.40 || m.Threshold.Value != -30.61 {
		t.Fatalf("unexpected values: %#v", m)
	}
}

func TestExtractStatsMissingBlock(t *testing.T) {
	_, err := ExtractStats([]byte("Input #0\nStream #0:0: Audio\nsize=N/A\n"))
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
	if _, err := ExtractStats(nil); !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable for empty output, got %v", err)
	}
}

func TestExtractStatsTruncatedBlock(t *testing.T) {
	truncated := sampleBlock[:len(sampleBlock)/2]
	_, err := ExtractStats(engineOutput(truncated))
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable for truncated block, got %v", err)
	}
}

func TestExtractStatsToleratesStrayBraces(t *testing.T) {
	out := "weird { unbalanced text\n" + sampleBlock + "\ntrailer } with stray brace {x}\n"
	m, err := ExtractStats([]byte(out))
	if err != nil {
		t.Fatalf("ExtractStats: %v", err)
	}
	if m.Integrated.Value != -20.35 {
		t.Fatalf("unexpected integrated %v", m.Integrated)
	}
}

func TestExtractStatsPrefersLastBlock(t *testing.T) {
	first := strings.Replace(sampleBlock, "-20.35", "-30.00", 1)
	m, err := ExtractStats([]byte(first + "\nmore output\n" + sampleBlock))
	if err != nil {
		t.Fatalf("ExtractStats: %v", err)
	}
	if m.Integrated.Value != -20.35 {
		t.Fatalf("expected last block to win, got %v", m.Integrated)
	}
}

func TestExtractStatsMissingFieldsAreAbsent(t *testing.T) {
	m, err := ExtractStats([]byte(`{"input_i": "-18.2", "input_tp": -2.5}`))
	if err != nil {
		t.Fatalf("ExtractStats: %v", err)
	}
	if !m.Integrated.Present || m.TruePeak.Value != -2.5 {
		t.Fatalf("unexpected metrics %#v", m)
	}
	if m.Range.Present || m.Threshold.Present {
		t.Fatalf("expected range and threshold to be absent: %#v", m)
	}
	if m.Complete() {
		t.Fatal("measurement with missing fields must not be complete")
	}
}

func TestExtractStatsIgnoresObjectsWithoutInputI(t *testing.T) {
	_, err := ExtractStats([]byte(`{"output_i": "-14.0"}`))
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestExtractStatsParsesInfinity(t *testing.T) {
	block := strings.Replace(sampleBlock, `"-20.35"`, `"-inf"`, 1)
	m, err := ExtractStats([]byte(block))
	if err != nil {
		t.Fatalf("ExtractStats: %v", err)
	}
	if !m.Integrated.Present || !math.IsInf(m.Integrated.Value, -1) {
		t.Fatalf("expected -inf integrated, got %#v", m.Integrated)
	}
	if m.Integrated.Finite() || m.Complete() {
		t.Fatal("-inf must not count as finite")
	}
}

func TestExtractStatsOnlySearchesTail(t *testing.T) {
	padding := strings.Repeat("x", statsTailBytes+10)
	if _, err := ExtractStats([]byte(sampleBlock + padding)); !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected block outside the tail to be ignored, got %v", err)
	}
	if _, err := ExtractStats([]byte(padding + sampleBlock)); err != nil {
		t.Fatalf("expected block in tail to be found: %v", err)
	}
}

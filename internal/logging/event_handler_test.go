package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func captureLines() (*[]string, LineSink) {
	var lines []string
	return &lines, func(line string) { lines = append(lines, line) }
}

func TestEventHandlerRendersFileMessageAndDetails(t *testing.T) {
	lines, sink := captureLines()
	logger := slog.New(NewEventHandler(sink, slog.LevelInfo)).With(String(FieldFile, "song.mp3"))

	logger.Info("normalized",
		String(FieldEventType, "file_complete"),
		String("mode", "two_pass"),
		Float64("adjustment_lu", 4.25),
		String(FieldRunID, "abc"),
	)

	if len(*lines) != 1 {
		t.Fatalf("expected one line, got %v", *lines)
	}
	want := "song.mp3: normalized (Mode: two_pass, Adjustment: +4.25)"
	if (*lines)[0] != want {
		t.Fatalf("got %q, want %q", (*lines)[0], want)
	}
}

func TestEventHandlerLevelAndPrefix(t *testing.T) {
	lines, sink := captureLines()
	logger := slog.New(NewEventHandler(sink, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Warn("engine slow")
	logger.Error("failed", Error(errors.New("exit status 1")), String(FieldFile, "bad.wav"))

	if len(*lines) != 2 {
		t.Fatalf("expected two lines, got %v", *lines)
	}
	if (*lines)[0] != "warning: engine slow" {
		t.Fatalf("unexpected warn line %q", (*lines)[0])
	}
	if !strings.HasPrefix((*lines)[1], "error: bad.wav: failed (Error:") {
		t.Fatalf("unexpected error line %q", (*lines)[1])
	}
}

func TestEventHandlerLimitsDetails(t *testing.T) {
	lines, sink := captureLines()
	slog.New(NewEventHandler(sink, slog.LevelInfo)).Info("summary",
		Int("succeeded", 3), Int("skipped", 1), Int("failed", 0), Int("total", 4),
	)
	if got := (*lines)[0]; got != "summary (Succeeded: 3, Skipped: 1, Failed: 0)" {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestNewEventHandlerNilSink(t *testing.T) {
	if _, ok := NewEventHandler(nil, slog.LevelInfo).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for nil sink")
	}
}

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, NoopHandler{}, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when no real handlers remain")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, NoopHandler{}); h != inner {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestFanoutHandlerEnabledIfAnyEnabled(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled via second handler")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))
	logger.Debug("details")
	if infoBuf.Len() != 0 {
		t.Fatalf("info handler received debug record: %s", infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "details") {
		t.Fatalf("debug handler missed record: %s", debugBuf.String())
	}
}

func TestFanoutHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&buf1, nil),
		slog.NewJSONHandler(&buf2, nil),
	)).With("run_id", "r1").WithGroup("plan")
	logger.Info("decided", "mode", "two_pass")
	for i, out := range []string{buf1.String(), buf2.String()} {
		if !strings.Contains(out, `"run_id":"r1"`) || !strings.Contains(out, `"plan":{"mode":"two_pass"}`) {
			t.Fatalf("handler %d missing attrs: %s", i, out)
		}
	}
}

type failingHandler struct{ NoopHandler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestFanoutHandlerJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	h := newFanoutHandler(failingHandler{}, slog.NewJSONHandler(&buf, nil))
	err := h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "msg", 0))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("healthy handler should still receive the record")
	}
}

func TestTeeLogger(t *testing.T) {
	var base, extra bytes.Buffer
	logger := TeeLogger(slog.New(slog.NewJSONHandler(&base, nil)), slog.NewJSONHandler(&extra, nil))
	logger.Info("hello")
	if base.Len() == 0 || extra.Len() == 0 {
		t.Fatalf("expected both outputs, got base=%q extra=%q", base.String(), extra.String())
	}

	var only bytes.Buffer
	TeeLogger(nil, slog.NewJSONHandler(&only, nil)).Info("solo")
	if !strings.Contains(only.String(), "solo") {
		t.Fatalf("expected nil base to be tolerated: %q", only.String())
	}
}

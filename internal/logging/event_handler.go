package logging

import (
	"context"
	"log/slog"
	"strings"
)

// LineSink receives rendered event lines. It must not block.
type LineSink func(line string)

// eventHandler renders records as single human-readable lines for the batch
// event stream, e.g. "song.mp3: normalized (Mode: two_pass, Adjustment: +4.3)".
type eventHandler struct {
	sink   LineSink
	level  slog.Level
	attrs  []slog.Attr
	groups []string
	limit  int
}

// NewEventHandler returns a handler that publishes records at or above level
// to sink. Pair it with TeeLogger so the same records also reach the log file.
func NewEventHandler(sink LineSink, level slog.Level) slog.Handler {
	if sink == nil {
		return NoopHandler{}
	}
	return &eventHandler{sink: sink, level: level, limit: 3}
}

func (h *eventHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *eventHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	h.sink(renderEventLine(record.Level, record.Message, collectAttrs(h.groups, h.attrs, record), h.limit))
	return nil
}

func (h *eventHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *eventHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func renderEventLine(level slog.Level, message string, kvs []kv, limit int) string {
	var b strings.Builder
	switch {
	case level >= slog.LevelError:
		b.WriteString("error: ")
	case level >= slog.LevelWarn:
		b.WriteString("warning: ")
	}
	if s := extractSubject(kvs); s.file != "" {
		b.WriteString(s.file)
		b.WriteString(": ")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "(no message)"
	}
	b.WriteString(message)

	details := make([]kv, 0, len(kvs))
	for _, kv := range kvs {
		if kv.key == FieldEventType || kv.key == FieldDecisionType || kv.key == FieldImpact {
			continue
		}
		details = append(details, kv)
	}
	fields, _ := selectInfoFields(details, limit, false)
	if len(fields) > 0 {
		b.WriteString(" (")
		for i, field := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(field.label)
			b.WriteString(": ")
			b.WriteString(field.value)
		}
		b.WriteByte(')')
	}
	return b.String()
}

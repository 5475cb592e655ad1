package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type testLogRecord struct {
	level   slog.Level
	message string
	attrs   map[string]any
}

// testLogger captures every record, including debug, for assertions.
type testLogger struct {
	mu      sync.Mutex
	records []testLogRecord
}

func newTestLogger() *testLogger {
	return &testLogger{}
}

func (l *testLogger) logger() *slog.Logger {
	return slog.New(&testLogHandler{sink: l})
}

func (l *testLogger) find(level slog.Level, msg string) []testLogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []testLogRecord
	for _, r := range l.records {
		if r.level == level && r.message == msg {
			out = append(out, r)
		}
	}
	return out
}

func (l *testLogger) count(level slog.Level) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.level == level {
			n++
		}
	}
	return n
}

type testLogHandler struct {
	sink  *testLogger
	attrs []slog.Attr
}

func (h *testLogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *testLogHandler) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.sink.records = append(h.sink.records, testLogRecord{
		level:   record.Level,
		message: record.Message,
		attrs:   attrs,
	})
	return nil
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &testLogHandler{sink: h.sink, attrs: merged}
}

// Groups are flattened; the engine does not use them.
func (h *testLogHandler) WithGroup(string) slog.Handler { return h }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

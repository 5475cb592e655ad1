package events

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// LogSink writes events to a slog logger at error level, with any details
// attached through errors.WithDetail.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Fire(ctx context.Context, name string, err error) {
	attrs := []any{"event", name}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
		if details := errors.GetAllDetails(err); len(details) > 0 {
			attrs = append(attrs, "details", details)
		}
	}
	s.logger.ErrorContext(ctx, "cron event", attrs...)
}

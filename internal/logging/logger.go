// Package logging builds the process slog.Logger, optionally teeing to a
// rotating file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	// Level is the minimum log level.
	Level slog.Level

	// OutputFile, when set, receives a copy of every record and is rotated.
	OutputFile string

	// MaxSize is the size in megabytes that triggers rotation.
	MaxSize int

	MaxBackups int

	// MaxAge is how many days rotated files are kept.
	MaxAge int

	Compress bool

	JSON bool

	// Output is the primary writer. Defaults to os.Stderr so command output
	// on stdout stays clean.
	Output io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:      slog.LevelInfo,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		JSON:       true,
	}
}

// New returns the logger and a closer for the rotating file, if any.
func New(cfg Config) (*slog.Logger, io.Closer) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}

	var closer io.Closer = nopCloser{}
	if cfg.OutputFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	writer := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), closer
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Newf("unknown log level %q", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

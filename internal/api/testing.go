package api

import (
	"context"
	"log/slog"
	"os"

	"github.com/albachteng/crontick/internal/cron"
	"github.com/albachteng/crontick/internal/interval"
	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/queue"
	"github.com/albachteng/crontick/internal/tasks"
)

// NewTestServer wires a Server over in-memory stores with an "echo::run"
// handler registered.
func NewTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	registry := jobs.NewRegistry()
	registry.MustRegister("echo::run", func(ctx context.Context, args jobs.Args) error {
		return nil
	})

	q := queue.NewMemoryQueue()
	intervals := interval.NewMemoryStore()
	engine := cron.NewEngine(cron.Deps{
		Queue:     q,
		Intervals: intervals,
		Handlers:  registry,
		Tasks:     tasks.NewRegistry(),
		Logger:    logger,
	}, cron.Config{RunOnBootstrap: true})

	return NewServer(q, intervals, registry, engine, logger)
}

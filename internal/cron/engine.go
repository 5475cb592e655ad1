// Package cron runs one scheduler tick: it drains a bounded batch from the job
// queue, then runs every recurring task whose interval has elapsed.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/albachteng/crontick/internal/events"
	"github.com/albachteng/crontick/internal/guard"
	"github.com/albachteng/crontick/internal/interval"
	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/queue"
	"github.com/albachteng/crontick/internal/tasks"
)

var ErrHandlerTimeout = errors.New("handler timed out")

type Config struct {
	// BatchSize caps jobs per tick. Zero means queue.DefaultBatchSize.
	BatchSize int
	// HandlerTimeout bounds each job and task handler. Zero disables it.
	HandlerTimeout time.Duration
	// RunOnBootstrap makes a task due on the tick that first records it.
	RunOnBootstrap bool
	// MemoryReserveBytes is held for the duration of a tick.
	MemoryReserveBytes int
	// Now is the clock used for interval checks. Defaults to time.Now.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		BatchSize:          queue.DefaultBatchSize,
		RunOnBootstrap:     true,
		MemoryReserveBytes: 4 << 20,
	}
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Queue     queue.Queue
	Intervals interval.Store
	Handlers  *jobs.Registry
	Tasks     *tasks.Registry
	Sink      events.Sink
	Logger    *slog.Logger
}

// Options selects which phases a tick runs.
type Options struct {
	RunJobs  bool
	RunTasks bool
}

func AllPhases() Options {
	return Options{RunJobs: true, RunTasks: true}
}

type Engine struct {
	queue     queue.Queue
	intervals interval.Store
	handlers  *jobs.Registry
	tasks     *tasks.Registry
	sink      events.Sink
	logger    *slog.Logger
	cfg       Config
}

func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Sink == nil {
		deps.Sink = events.Discard
	}
	if deps.Handlers == nil {
		deps.Handlers = jobs.NewRegistry()
	}
	if deps.Tasks == nil {
		deps.Tasks = tasks.NewRegistry()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = queue.DefaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		queue:     deps.Queue,
		intervals: deps.Intervals,
		handlers:  deps.Handlers,
		tasks:     deps.Tasks,
		sink:      deps.Sink,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// ExecuteCron runs one tick and returns what happened. It never panics;
// a panic that escapes both phases is returned as Report.Fatal.
func (e *Engine) ExecuteCron(ctx context.Context, opts Options) *Report {
	report := &Report{TickID: uuid.NewString(), StartedAt: e.cfg.Now()}
	logger := e.logger.With("tick_id", report.TickID)
	start := time.Now()

	if logger.Enabled(ctx, slog.LevelDebug) {
		if snap, err := guard.TakeSnapshot(); err == nil {
			logger.DebugContext(ctx, "tick starting",
				"run_jobs", opts.RunJobs,
				"run_tasks", opts.RunTasks,
				"mem_available", snap.AvailableBytes,
				"heap_alloc", snap.HeapAllocBytes)
		}
	}

	report.Fatal = guard.Run(ctx, guard.Config{MemoryReserveBytes: e.cfg.MemoryReserveBytes}, e.sink, logger,
		func(ctx context.Context) {
			if opts.RunJobs {
				e.phase(ctx, logger, report, "jobs", e.runJobs)
			}
			if opts.RunTasks {
				e.phase(ctx, logger, report, "tasks", e.runTasks)
			}
		})

	report.Duration = time.Since(start)
	logger.InfoContext(ctx, "tick complete", report.LogAttrs()...)
	return report
}

type phaseFunc func(ctx context.Context, logger *slog.Logger, report *Report) error

// phase runs fn with its own recover boundary so a failing phase does not
// stop the next one.
func (e *Engine) phase(ctx context.Context, logger *slog.Logger, report *Report, name string, fn phaseFunc) {
	defer func() {
		if r := recover(); r != nil {
			e.phaseFailed(ctx, logger, report, name, guard.Recovered(r))
		}
	}()

	if err := fn(ctx, logger, report); err != nil {
		e.phaseFailed(ctx, logger, report, name, err)
	}
}

func (e *Engine) phaseFailed(ctx context.Context, logger *slog.Logger, report *Report, name string, err error) {
	report.PhaseFailures++
	err = errors.Wrapf(err, "%s phase", name)
	logger.ErrorContext(ctx, "phase failed", "phase", name, "error", err)
	e.sink.Fire(ctx, events.PhaseFailed, err)
}

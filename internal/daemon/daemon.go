// Package daemon triggers cron ticks on robfig/cron schedules until stopped.
package daemon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	robfig "github.com/robfig/cron/v3"

	"github.com/albachteng/crontick/internal/cron"
)

// Ticker runs one tick. Satisfied by *cron.Engine.
type Ticker interface {
	ExecuteCron(ctx context.Context, opts cron.Options) *cron.Report
}

// TryLocker serializes ticks across triggers. *sync.Mutex satisfies it.
type TryLocker interface {
	TryLock() bool
	Unlock()
}

type Schedules struct {
	Jobs  string
	Tasks string
}

type Daemon struct {
	engine  Ticker
	lock    TryLocker
	logger  *slog.Logger
	cron    *robfig.Cron
	entries []robfig.EntryID

	mu  sync.Mutex
	ctx context.Context
}

var parser = robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor)

// New schedules ticks. Identical job and task schedules share one entry that
// runs both phases; otherwise each phase gets its own entry. An empty
// schedule disables that phase. lock may be shared with other triggers; nil
// gets a private mutex.
func New(engine Ticker, schedules Schedules, lock TryLocker, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if lock == nil {
		lock = &sync.Mutex{}
	}

	d := &Daemon{
		engine: engine,
		lock:   lock,
		logger: logger,
		ctx:    context.Background(),
	}
	d.cron = robfig.New(
		robfig.WithParser(parser),
		robfig.WithChain(robfig.SkipIfStillRunning(cronLogger{logger})),
		robfig.WithLogger(cronLogger{logger}),
	)

	type entry struct {
		spec string
		opts cron.Options
	}
	var entries []entry
	switch {
	case schedules.Jobs != "" && schedules.Jobs == schedules.Tasks:
		entries = append(entries, entry{schedules.Jobs, cron.AllPhases()})
	default:
		if schedules.Jobs != "" {
			entries = append(entries, entry{schedules.Jobs, cron.Options{RunJobs: true}})
		}
		if schedules.Tasks != "" {
			entries = append(entries, entry{schedules.Tasks, cron.Options{RunTasks: true}})
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("daemon needs at least one schedule")
	}

	for _, e := range entries {
		opts := e.opts
		id, err := d.cron.AddFunc(e.spec, func() { d.Tick(opts) })
		if err != nil {
			return nil, errors.Wrapf(err, "schedule %q", e.spec)
		}
		d.entries = append(d.entries, id)
		logger.Info("tick scheduled", "schedule", e.spec, "run_jobs", opts.RunJobs, "run_tasks", opts.RunTasks)
	}
	return d, nil
}

// Start begins firing entries. ctx is handed to every tick.
func (d *Daemon) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
	d.cron.Start()
}

// Stop prevents new ticks and waits for a running one, or for ctx.
func (d *Daemon) Stop(ctx context.Context) error {
	done := d.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for running tick")
	}
}

// Tick runs one tick unless another trigger holds the lock. It reports
// whether the tick ran.
func (d *Daemon) Tick(opts cron.Options) (*cron.Report, bool) {
	if !d.lock.TryLock() {
		d.logger.Debug("tick skipped, another tick in progress", "run_jobs", opts.RunJobs, "run_tasks", opts.RunTasks)
		return nil, false
	}
	defer d.lock.Unlock()

	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()

	return d.engine.ExecuteCron(ctx, opts), true
}

// Next returns when each entry fires next. Zero before Start.
func (d *Daemon) Next() []robfig.Entry {
	out := make([]robfig.Entry, 0, len(d.entries))
	for _, id := range d.entries {
		out = append(out, d.cron.Entry(id))
	}
	return out
}

// cronLogger adapts slog to robfig's logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

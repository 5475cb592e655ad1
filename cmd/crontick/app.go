package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/albachteng/crontick/internal/config"
	"github.com/albachteng/crontick/internal/cron"
	"github.com/albachteng/crontick/internal/daemon"
	"github.com/albachteng/crontick/internal/events"
	"github.com/albachteng/crontick/internal/interval"
	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/logging"
	"github.com/albachteng/crontick/internal/modules/maintenance"
	"github.com/albachteng/crontick/internal/queue"
	"github.com/albachteng/crontick/internal/shutdown"
	"github.com/albachteng/crontick/internal/store"
	"github.com/albachteng/crontick/internal/tasks"
	"github.com/albachteng/crontick/internal/tracking"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	dbPath     string
}

func (f *globalFlags) overrides() map[string]any {
	o := map[string]any{}
	if f.logLevel != "" {
		o["logging.level"] = f.logLevel
	}
	if f.dbPath != "" {
		o["database.path"] = f.dbPath
	}
	return o
}

// app holds everything a subcommand needs, built from configuration.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	db        *sql.DB

	queue     *queue.SQLiteQueue
	intervals *interval.SQLiteStore
	handlers  *jobs.Registry
	tasks     *tasks.Registry
	bus       *events.Bus
}

func newApp(ctx context.Context, flags *globalFlags, stderr io.Writer) (*app, error) {
	cfg, err := config.LoadWith(flags.configPath, flags.overrides())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	logCfg := cfg.LogConfig()
	logCfg.Output = stderr
	logger, logCloser := logging.New(logCfg)

	db, err := store.Open(ctx, cfg.Database.Path, store.Options{BusyTimeout: cfg.Database.BusyTimeout}, logger)
	if err != nil {
		logCloser.Close()
		return nil, errors.Wrap(err, "failed to open database")
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: logCloser,
		db:        db,
		queue:     queue.NewSQLiteQueue(db),
		intervals: interval.NewSQLiteStore(db),
		handlers:  jobs.NewRegistry(),
		tasks:     tasks.NewRegistry(),
		bus:       events.NewBus(),
	}

	if cfg.Maintenance.Enabled {
		m := maintenance.New(db, a.queue, cfg.Maintenance.BacklogThreshold, logger)
		if err := a.tasks.Register(m); err != nil {
			a.Close()
			return nil, err
		}
		if err := m.RegisterHandlers(a.handlers); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// withApp builds the app for one command invocation and tears it down after.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return errors.CombineErrors(fn(a), a.Close())
}

func (a *app) engine() *cron.Engine {
	sc := a.cfg.Scheduler
	return cron.NewEngine(cron.Deps{
		Queue:     a.queue,
		Intervals: a.intervals,
		Handlers:  a.handlers,
		Tasks:     a.tasks,
		Sink:      events.Multi(events.NewLogSink(a.logger), a.bus),
		Logger:    a.logger,
	}, cron.Config{
		BatchSize:          sc.BatchSize,
		HandlerTimeout:     sc.HandlerTimeout,
		RunOnBootstrap:     sc.RunOnBootstrap,
		MemoryReserveBytes: sc.MemoryReserveBytes(),
	})
}

// startDaemon schedules ticks of engine and registers the daemon with mgr so
// shutdown waits for a running tick.
func (a *app) startDaemon(mgr *shutdown.Manager, engine daemon.Ticker, lock daemon.TryLocker, tracker *tracking.TickTracker) error {
	rec := tracking.Recording{Ticker: engine, Tracker: tracker, Trigger: "schedule"}
	d, err := daemon.New(rec, daemon.Schedules{
		Jobs:  a.cfg.Daemon.JobsSchedule,
		Tasks: a.cfg.Daemon.TasksSchedule,
	}, lock, a.logger)
	if err != nil {
		return err
	}
	if err := mgr.RegisterTask("daemon", d.Stop); err != nil {
		return err
	}
	// A running tick outlives the signal: its jobs are already dequeued.
	d.Start(context.WithoutCancel(mgr.Context()))
	return nil
}

func (a *app) Close() error {
	err := a.db.Close()
	return errors.CombineErrors(err, a.logCloser.Close())
}

func shutdownErr(errs []error) error {
	var err error
	for _, e := range errs {
		err = errors.CombineErrors(err, e)
	}
	return err
}

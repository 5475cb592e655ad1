// Package maintenance is the built-in module: it keeps the SQLite file tidy
// and watches the job backlog.
package maintenance

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/store"
	"github.com/albachteng/crontick/internal/tasks"
)

const ModuleID = "maintenance"

// Backlog reports the number of pending jobs. queue.Queue satisfies it.
type Backlog interface {
	Len(ctx context.Context) (int, error)
}

type Module struct {
	db        store.Querier
	backlog   Backlog
	threshold int
	logger    *slog.Logger
}

// New builds the module. A threshold <= 0 disables the backlog warning.
func New(db store.Querier, backlog Backlog, threshold int, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{db: db, backlog: backlog, threshold: threshold, logger: logger.With("module", ModuleID)}
}

func (m *Module) ModuleID() string { return ModuleID }

func (m *Module) Tasks() []tasks.Task {
	return []tasks.Task{
		{Code: "optimize", IntervalMinutes: 60, Run: m.optimize},
		{Code: "queue_backlog", IntervalMinutes: 5, Run: m.checkBacklog},
	}
}

// RegisterHandlers adds maintenance::vacuum and log::message.
func (m *Module) RegisterHandlers(r *jobs.Registry) error {
	if err := r.RegisterScope(ModuleID, map[string]jobs.HandlerFunc{
		"vacuum": m.vacuum,
	}); err != nil {
		return err
	}
	return r.RegisterScope("log", map[string]jobs.HandlerFunc{
		"message": m.logMessage,
	})
}

func (m *Module) optimize(ctx context.Context) (bool, error) {
	if _, err := m.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return false, errors.Wrap(err, "pragma optimize")
	}
	return true, nil
}

// checkBacklog is unsuccessful while the queue is over threshold, so it is
// re-checked every tick until the backlog drains.
func (m *Module) checkBacklog(ctx context.Context) (bool, error) {
	n, err := m.backlog.Len(ctx)
	if err != nil {
		return false, errors.Wrap(err, "count pending jobs")
	}
	if m.threshold > 0 && n > m.threshold {
		m.logger.WarnContext(ctx, "job backlog over threshold", "pending", n, "threshold", m.threshold)
		return false, nil
	}
	m.logger.InfoContext(ctx, "job backlog", "pending", n)
	return true, nil
}

func (m *Module) vacuum(ctx context.Context, _ jobs.Args) error {
	if _, err := m.db.ExecContext(ctx, "VACUUM"); err != nil {
		return errors.Wrap(err, "vacuum")
	}
	m.logger.InfoContext(ctx, "database vacuumed")
	return nil
}

// logMessage writes its arguments as one line. The first argument may be a
// level (debug, info, warn, error) when more than one is given.
func (m *Module) logMessage(ctx context.Context, args jobs.Args) error {
	if args.Len() == 0 {
		return errors.Wrap(jobs.ErrInvalidArgs, "log::message needs at least one argument")
	}

	level := slog.LevelInfo
	rest := args
	if args.Len() > 1 {
		if s, ok := args[0].AsString(); ok {
			var l slog.Level
			if err := l.UnmarshalText([]byte(s)); err == nil {
				level, rest = l, args[1:]
			}
		}
	}

	parts := make([]string, len(rest))
	for i, v := range rest {
		if s, ok := v.AsString(); ok {
			parts[i] = s
			continue
		}
		parts[i] = v.String()
	}
	m.logger.Log(ctx, level, strings.Join(parts, " "), "source", "job")
	return nil
}

package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/albachteng/crontick/internal/events"
	"github.com/albachteng/crontick/internal/tasks"
)

func (e *Engine) runTasks(ctx context.Context, logger *slog.Logger, report *Report) error {
	if e.intervals == nil {
		return errors.New("no interval store configured")
	}

	now := e.cfg.Now()
	seen := make(map[string]bool)
	for _, d := range e.tasks.Descriptors() {
		code := d.RecordCode()
		switch {
		case d.Code == "":
			e.taskFailed(ctx, logger.With("record_code", code), report, code,
				errors.Wrapf(tasks.ErrInvalidTask, "module %s returned a task without a code", d.ModuleID))
			continue
		case seen[code]:
			e.taskFailed(ctx, logger.With("record_code", code), report, code,
				errors.Wrap(tasks.ErrDuplicateTask, "code returned twice this tick, later copy skipped"))
			continue
		}
		seen[code] = true
		e.runTask(ctx, logger, report, d, now)
	}
	return nil
}

func (e *Engine) runTask(ctx context.Context, logger *slog.Logger, report *Report, d tasks.Descriptor, now time.Time) {
	code := d.RecordCode()
	log := logger.With("record_code", code)

	if d.IntervalMinutes < 1 || d.Run == nil {
		e.taskFailed(ctx, log, report, code, errors.Wrapf(tasks.ErrInvalidInterval, "interval %d", d.IntervalMinutes))
		return
	}

	last, bootstrapped, err := e.intervals.Get(ctx, code)
	if err != nil {
		e.taskFailed(ctx, log, report, code, errors.Wrap(err, "read interval"))
		return
	}

	period := time.Duration(d.IntervalMinutes) * time.Minute
	nextDue := last.Add(period)
	due := (bootstrapped && e.cfg.RunOnBootstrap) || !now.Before(nextDue)
	if !due {
		report.TasksNotDue++
		log.DebugContext(ctx, "task not due", "next_due", nextDue)
		return
	}

	report.TasksRun++
	ok, err := invoke[bool](ctx, e.cfg.HandlerTimeout, d.Run)
	if bootstrapped && (err != nil || !ok) {
		// The bootstrap stamp would otherwise hold the task back a full period.
		e.rewind(ctx, log, code, last.Add(-period))
	}
	if err != nil {
		e.taskFailed(ctx, log, report, code, err)
		return
	}
	if !ok {
		report.TasksUnsuccessful++
		log.InfoContext(ctx, "task did not succeed, retrying next tick")
		return
	}

	if err := e.intervals.Update(ctx, code); err != nil {
		e.taskFailed(ctx, log, report, code, errors.Wrap(err, "update interval"))
		return
	}
	report.TasksSucceeded++
	log.DebugContext(ctx, "task completed")
}

// rewind backdates a freshly bootstrapped record so the next tick finds the
// task due again.
func (e *Engine) rewind(ctx context.Context, log *slog.Logger, code string, t time.Time) {
	if err := e.intervals.Set(ctx, code, t); err != nil {
		log.ErrorContext(ctx, "failed to rewind bootstrap interval", "error", err)
	}
}

func (e *Engine) taskFailed(ctx context.Context, log *slog.Logger, report *Report, code string, err error) {
	report.TasksFailed++
	err = errors.Wrapf(err, "task %s", code)
	log.ErrorContext(ctx, "task failed", "error", err)
	e.sink.Fire(ctx, events.TaskFailed, err)
}

package cron

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/albachteng/crontick/internal/events"
	"github.com/albachteng/crontick/internal/jobs"
)

func (e *Engine) runJobs(ctx context.Context, logger *slog.Logger, report *Report) error {
	if e.queue == nil {
		return errors.New("no job queue configured")
	}

	records, err := e.queue.DequeueBatch(ctx, e.cfg.BatchSize)
	if err != nil {
		return errors.Wrap(err, "dequeue jobs")
	}
	report.JobsDequeued = len(records)

	for _, rec := range records {
		e.runJob(ctx, logger, report, rec)
	}
	return nil
}

// runJob handles one claimed record. The record is already gone from the
// queue, so every outcome here is final.
func (e *Engine) runJob(ctx context.Context, logger *slog.Logger, report *Report, rec *jobs.Record) {
	log := logger.With("job_id", int64(rec.ID), "handler", rec.HandlerName)

	scope, method, err := jobs.ParseHandlerName(rec.HandlerName)
	if err != nil {
		report.JobsSkipped++
		log.WarnContext(ctx, "skipping malformed job", "error", err)
		return
	}

	fn, ok := e.handlers.Resolve(scope, method)
	if !ok {
		report.JobsUnresolved++
		log.DebugContext(ctx, "no handler registered for job")
		return
	}

	args, err := rec.Args()
	if err != nil {
		e.jobFailed(ctx, log, report, rec, errors.Wrap(err, "decode args"))
		return
	}

	_, err = invoke(ctx, e.cfg.HandlerTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx, args)
	})
	if err != nil {
		e.jobFailed(ctx, log, report, rec, err)
		return
	}

	report.JobsProcessed++
	log.DebugContext(ctx, "job completed")
}

func (e *Engine) jobFailed(ctx context.Context, log *slog.Logger, report *Report, rec *jobs.Record, err error) {
	report.JobsFailed++
	err = errors.Wrapf(err, "job %d (%s)", rec.ID, rec.HandlerName)
	log.ErrorContext(ctx, "job failed", "error", err)
	e.sink.Fire(ctx, events.JobFailed, err)
}

package cron

import "time"

// Report counts what one tick did.
type Report struct {
	TickID    string
	StartedAt time.Time
	Duration  time.Duration

	JobsDequeued   int
	JobsProcessed  int
	JobsFailed     int
	JobsSkipped    int
	JobsUnresolved int

	TasksRun          int
	TasksSucceeded    int
	TasksUnsuccessful int
	TasksFailed       int
	TasksNotDue       int

	PhaseFailures int
	Fatal         error
}

// OK reports whether the tick finished with no failures of any kind.
func (r *Report) OK() bool {
	return r.Fatal == nil && r.PhaseFailures == 0 && r.JobsFailed == 0 && r.TasksFailed == 0
}

func (r *Report) LogAttrs() []any {
	attrs := []any{
		"duration", r.Duration,
		"jobs_dequeued", r.JobsDequeued,
		"jobs_processed", r.JobsProcessed,
		"jobs_failed", r.JobsFailed,
		"jobs_skipped", r.JobsSkipped,
		"jobs_unresolved", r.JobsUnresolved,
		"tasks_run", r.TasksRun,
		"tasks_succeeded", r.TasksSucceeded,
		"tasks_unsuccessful", r.TasksUnsuccessful,
		"tasks_failed", r.TasksFailed,
		"tasks_not_due", r.TasksNotDue,
		"phase_failures", r.PhaseFailures,
	}
	if r.Fatal != nil {
		attrs = append(attrs, "fatal", r.Fatal.Error())
	}
	return attrs
}

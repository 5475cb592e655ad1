package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/albachteng/crontick/internal/cron"
	"github.com/albachteng/crontick/internal/events"
	"github.com/albachteng/crontick/internal/interval"
	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/queue"
	"github.com/albachteng/crontick/internal/store"
	"github.com/albachteng/crontick/internal/store/storetest"
	"github.com/albachteng/crontick/internal/tasks"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Unix(1_700_000_000, 0)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors to keep test output clean
	}))
}

type harness struct {
	db        *sql.DB
	clock     *clock
	queue     *queue.SQLiteQueue
	intervals *interval.SQLiteStore
	handlers  *jobs.Registry
	tasks     *tasks.Registry
	sink      *events.Recorder
}

func newHarness(t *testing.T, db *sql.DB) *harness {
	t.Helper()
	c := newClock()
	return &harness{
		db:        db,
		clock:     c,
		queue:     queue.NewSQLiteQueue(db, queue.WithClock(c.Now)),
		intervals: interval.NewSQLiteStore(db, interval.WithClock(c.Now)),
		handlers:  jobs.NewRegistry(),
		tasks:     tasks.NewRegistry(),
		sink:      &events.Recorder{},
	}
}

func (h *harness) engine() *cron.Engine {
	cfg := cron.DefaultConfig()
	cfg.Now = h.clock.Now
	return cron.NewEngine(cron.Deps{
		Queue:     h.queue,
		Intervals: h.intervals,
		Handlers:  h.handlers,
		Tasks:     h.tasks,
		Sink:      h.sink,
		Logger:    quietLogger(),
	}, cfg)
}

func (h *harness) enqueue(t *testing.T, name string, vals ...any) jobs.JobID {
	t.Helper()
	args, err := jobs.ArgsOf(vals...)
	if err != nil {
		t.Fatalf("failed to build args: %v", err)
	}
	id, err := h.queue.Enqueue(context.Background(), name, args)
	if err != nil {
		t.Fatalf("failed to enqueue %s: %v", name, err)
	}
	return id
}

func TestTick_JobBatchesDrainInOrder(t *testing.T) {
	h := newHarness(t, storetest.Open(t))
	ctx := context.Background()

	var seen []int64
	h.handlers.MustRegister("mail::send", func(ctx context.Context, args jobs.Args) error {
		n, err := args.Int(0)
		if err != nil {
			return err
		}
		seen = append(seen, n)
		return nil
	})

	for i := range 12 {
		h.enqueue(t, "mail::send", i)
		h.clock.Advance(time.Second)
	}

	engine := h.engine()

	t.Run("first tick takes one batch", func(t *testing.T) {
		report := engine.ExecuteCron(ctx, cron.Options{RunJobs: true})
		if report.JobsProcessed != queue.DefaultBatchSize {
			t.Fatalf("processed %d jobs, want %d", report.JobsProcessed, queue.DefaultBatchSize)
		}
		n, err := h.queue.Len(ctx)
		if err != nil {
			t.Fatalf("failed to count queue: %v", err)
		}
		if n != 7 {
			t.Errorf("got %d jobs left, want 7", n)
		}
	})

	t.Run("later ticks drain the rest exactly once", func(t *testing.T) {
		engine.ExecuteCron(ctx, cron.Options{RunJobs: true})
		last := engine.ExecuteCron(ctx, cron.Options{RunJobs: true})
		if last.JobsProcessed != 2 {
			t.Errorf("final tick processed %d jobs, want 2", last.JobsProcessed)
		}
		empty := engine.ExecuteCron(ctx, cron.Options{RunJobs: true})
		if empty.JobsDequeued != 0 {
			t.Errorf("empty queue dequeued %d jobs", empty.JobsDequeued)
		}

		if len(seen) != 12 {
			t.Fatalf("handler saw %d jobs, want 12", len(seen))
		}
		for i, n := range seen {
			if n != int64(i) {
				t.Errorf("position %d ran job %d, want FIFO order", i, n)
			}
		}
	})
}

func TestTick_FailedJobsAreNotRetried(t *testing.T) {
	h := newHarness(t, storetest.Open(t))
	ctx := context.Background()

	var ran []string
	h.handlers.MustRegister("work::ok", func(ctx context.Context, args jobs.Args) error {
		s, _ := args.String(0)
		ran = append(ran, s)
		return nil
	})
	h.handlers.MustRegister("work::fail", func(context.Context, jobs.Args) error {
		return errors.New("upstream unavailable")
	})
	h.handlers.MustRegister("work::panic", func(context.Context, jobs.Args) error {
		panic("nil map write")
	})

	h.enqueue(t, "work::ok", "before")
	h.enqueue(t, "work::fail")
	h.enqueue(t, "work::panic")
	h.enqueue(t, "no-separator")
	h.enqueue(t, "work::ok", "after")

	report := h.engine().ExecuteCron(ctx, cron.AllPhases())

	if report.JobsDequeued != 5 || report.JobsProcessed != 2 || report.JobsFailed != 2 || report.JobsSkipped != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Fatal != nil || report.PhaseFailures != 0 {
		t.Errorf("job failures escaped the job: fatal=%v phases=%d", report.Fatal, report.PhaseFailures)
	}
	if got := fmt.Sprint(ran); got != "[before after]" {
		t.Errorf("ran %s, want [before after]", got)
	}
	if n := h.sink.Count(events.JobFailed); n != 2 {
		t.Errorf("got %d job failure events, want 2", n)
	}

	n, err := h.queue.Len(ctx)
	if err != nil {
		t.Fatalf("failed to count queue: %v", err)
	}
	if n != 0 {
		t.Errorf("failed jobs were left in the queue: %d", n)
	}
}

func TestTick_TaskIntervals(t *testing.T) {
	h := newHarness(t, storetest.Open(t))
	ctx := context.Background()

	var invoices, flakyCalls int
	h.tasks.MustRegister(tasks.Static{Module: "billing", List: []tasks.Task{
		{Code: "invoice", IntervalMinutes: 10, Run: func(context.Context) (bool, error) {
			invoices++
			return true, nil
		}},
		{Code: "flaky", IntervalMinutes: 10, Run: func(context.Context) (bool, error) {
			flakyCalls++
			return flakyCalls > 1, nil
		}},
		{Code: "broken", IntervalMinutes: 10, Run: func(context.Context) (bool, error) {
			return false, errors.New("ledger locked")
		}},
	}})
	engine := h.engine()
	tasksOnly := cron.Options{RunTasks: true}

	steps := []struct {
		name      string
		advance   time.Duration
		run       int
		succeeded int
		unsucc    int
		failed    int
		notDue    int
	}{
		{"bootstrap tick runs everything", 0, 3, 1, 1, 1, 0},
		{"unsuccessful and failed tasks retry next tick", time.Minute, 2, 1, 0, 1, 1},
		{"invoice due again after the interval", 9 * time.Minute, 2, 1, 0, 1, 1},
		{"flaky due an interval after its success", time.Minute, 2, 1, 0, 1, 1},
	}

	for _, step := range steps {
		h.clock.Advance(step.advance)
		report := engine.ExecuteCron(ctx, tasksOnly)
		if report.TasksRun != step.run || report.TasksSucceeded != step.succeeded ||
			report.TasksUnsuccessful != step.unsucc || report.TasksFailed != step.failed ||
			report.TasksNotDue != step.notDue {
			t.Errorf("%s: got run=%d succeeded=%d unsuccessful=%d failed=%d not_due=%d",
				step.name, report.TasksRun, report.TasksSucceeded, report.TasksUnsuccessful,
				report.TasksFailed, report.TasksNotDue)
		}
	}

	if invoices != 2 {
		t.Errorf("invoice ran %d times, want 2", invoices)
	}
	if flakyCalls != 3 {
		t.Errorf("flaky ran %d times, want 3", flakyCalls)
	}

	records, err := h.intervals.List(ctx)
	if err != nil {
		t.Fatalf("failed to list intervals: %v", err)
	}
	start := time.Unix(1_700_000_000, 0)
	want := map[string]time.Time{
		"billing_broken":  start.Add(-10 * time.Minute),
		"billing_flaky":   start.Add(11 * time.Minute),
		"billing_invoice": start.Add(10 * time.Minute),
	}
	if len(records) != len(want) {
		t.Fatalf("got %d interval records, want %d", len(records), len(want))
	}
	for _, r := range records {
		if !r.UpdatedAt.Equal(want[r.Code]) {
			t.Errorf("%s updated at %v, want %v", r.Code, r.UpdatedAt, want[r.Code])
		}
	}
}

func TestTick_JobPhaseFailureDoesNotStopTasks(t *testing.T) {
	h := newHarness(t, storetest.Open(t))
	ctx := context.Background()

	ran := false
	h.tasks.MustRegister(tasks.Static{Module: "report", List: []tasks.Task{
		{Code: "daily", IntervalMinutes: 1440, Run: func(context.Context) (bool, error) {
			ran = true
			return true, nil
		}},
	}})

	// Dropping the queue table makes the dequeue fail for the whole phase.
	if _, err := h.db.ExecContext(ctx, "DROP TABLE job_queue"); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	report := h.engine().ExecuteCron(ctx, cron.AllPhases())
	if report.PhaseFailures != 1 {
		t.Errorf("got %d phase failures, want 1", report.PhaseFailures)
	}
	if !ran || report.TasksSucceeded != 1 {
		t.Errorf("task phase did not run after job phase failure: %+v", report)
	}
	if h.sink.Count(events.PhaseFailed) != 1 {
		t.Errorf("phase failure event not fired")
	}
}

func TestTick_QueueSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crontick.db")
	ctx := context.Background()
	logger := quietLogger()

	db, err := store.Open(ctx, path, store.DefaultOptions(), logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	h := newHarness(t, db)
	h.handlers.MustRegister("noop::run", func(context.Context, jobs.Args) error { return nil })
	for i := range 12 {
		h.enqueue(t, "noop::run", i)
	}
	h.engine().ExecuteCron(ctx, cron.AllPhases())
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}

	db, err = store.Open(ctx, path, store.DefaultOptions(), logger)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer db.Close()

	records, err := queue.NewSQLiteQueue(db).List(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list queue: %v", err)
	}
	if len(records) != 7 {
		t.Fatalf("got %d jobs after restart, want 7", len(records))
	}
	args, err := records[0].Args()
	if err != nil {
		t.Fatalf("failed to decode args: %v", err)
	}
	if n, _ := args.Int(0); n != 5 {
		t.Errorf("oldest remaining job has arg %d, want 5", n)
	}
}

// Package shutdown runs named cleanup steps in reverse registration order.
package shutdown

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Task performs one cleanup step. ctx carries the remaining shutdown budget.
type Task func(ctx context.Context) error

var ErrShutdownStarted = errors.New("cannot register task after shutdown has started")

// Manager coordinates teardown. Steps registered later run earlier, so a
// trigger registered after the database it uses is stopped before the
// database closes.
type Manager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	tasks   []namedTask
	started bool
	errs    []error

	once sync.Once
	done chan struct{}
}

type namedTask struct {
	name string
	run  Task
}

const defaultTimeout = 30 * time.Second

func NewManager(ctx context.Context, timeout time.Duration, logger *slog.Logger) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (m *Manager) RegisterTask(name string, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.Wrap(ErrShutdownStarted, name)
	}
	m.tasks = append(m.tasks, namedTask{name: name, run: task})
	return nil
}

// Shutdown runs every task once, newest first, sharing one timeout. A task
// still running when the budget is spent is abandoned along with the rest.
// Safe to call more than once.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.started = true
		tasks := m.tasks
		m.mu.Unlock()

		m.cancel()
		m.runTasks(tasks)
		close(m.done)
	})
}

func (m *Manager) runTasks(tasks []namedTask) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(tasks) - 1; i >= 0; i-- {
		nt := tasks[i]
		result := make(chan error, 1)
		go func() {
			result <- nt.run(ctx)
		}()

		select {
		case err := <-result:
			if err != nil {
				m.record(errors.Wrapf(err, "shutdown %s", nt.name))
				m.logger.Error("shutdown task failed", "task", nt.name, "error", err)
				continue
			}
			m.logger.Debug("shutdown task done", "task", nt.name)
		case <-ctx.Done():
			incomplete := make([]string, 0, i+1)
			for j := i; j >= 0; j-- {
				incomplete = append(incomplete, tasks[j].name)
			}
			m.record(errors.Wrapf(ctx.Err(), "shutdown timed out after %s", m.timeout))
			m.logger.Warn("shutdown timeout exceeded",
				"timeout", m.timeout,
				"incomplete_tasks", incomplete)
			return
		}
	}
	m.logger.Info("shutdown completed", "tasks_completed", len(tasks))
}

func (m *Manager) record(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

// Wait blocks until Shutdown has finished.
func (m *Manager) Wait() {
	<-m.done
}

// Context is cancelled as soon as Shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Errors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errs...)
}

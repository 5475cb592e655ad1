// Package tasks enumerates the recurring work that modules contribute to a
// cron tick.
package tasks

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidInterval = errors.New("task interval must be at least one minute")
	ErrDuplicateTask   = errors.New("task already registered")
	ErrInvalidTask     = errors.New("invalid task")
)

// RunFunc performs one run of a task. Returning false without an error means
// the run did not succeed and should be retried on the next tick.
type RunFunc func(ctx context.Context) (bool, error)

// Task is one recurring task as declared by its module.
type Task struct {
	Code            string
	IntervalMinutes int
	Run             RunFunc
}

// Provider is a module that contributes tasks.
type Provider interface {
	ModuleID() string
	Tasks() []Task
}

// Descriptor is a task bound to the module that owns it.
type Descriptor struct {
	ModuleID string
	Task
}

// RecordCode is the key under which the task's last run is stored.
func (d Descriptor) RecordCode() string {
	return d.ModuleID + "_" + d.Code
}

// Registry holds providers in registration order.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	codes     map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{codes: make(map[string]struct{})}
}

// Register validates every task of p and adds the provider. Nothing is added
// if any task is invalid.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.Wrap(ErrInvalidTask, "nil provider")
	}
	module := p.ModuleID()
	if strings.TrimSpace(module) == "" {
		return errors.Wrap(ErrInvalidTask, "empty module id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	for _, t := range p.Tasks() {
		d := Descriptor{ModuleID: module, Task: t}
		code := d.RecordCode()
		switch {
		case strings.TrimSpace(t.Code) == "":
			return errors.Wrapf(ErrInvalidTask, "module %s: empty task code", module)
		case t.Run == nil:
			return errors.Wrapf(ErrInvalidTask, "task %s has no run func", code)
		case t.IntervalMinutes < 1:
			return errors.Wrapf(ErrInvalidInterval, "task %s: %d", code, t.IntervalMinutes)
		}
		if _, dup := r.codes[code]; dup {
			return errors.Wrap(ErrDuplicateTask, code)
		}
		if _, dup := seen[code]; dup {
			return errors.Wrap(ErrDuplicateTask, code)
		}
		seen[code] = struct{}{}
	}

	for code := range seen {
		r.codes[code] = struct{}{}
	}
	r.providers = append(r.providers, p)
	return nil
}

// MustRegister is Register for wiring in main.
func (r *Registry) MustRegister(p Provider) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Providers returns a snapshot of registered providers in order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.providers...)
}

// Descriptors flattens every provider's tasks in registration order. Tasks()
// is called afresh each time.
func (r *Registry) Descriptors() []Descriptor {
	var out []Descriptor
	for _, p := range r.Providers() {
		for _, t := range p.Tasks() {
			out = append(out, Descriptor{ModuleID: p.ModuleID(), Task: t})
		}
	}
	return out
}

// Static is a Provider backed by a fixed slice.
type Static struct {
	Module string
	List   []Task
}

func (s Static) ModuleID() string { return s.Module }
func (s Static) Tasks() []Task    { return s.List }

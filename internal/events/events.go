// Package events carries failure notifications out of a cron tick.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	JobFailed   = "cron.job_failed"
	TaskFailed  = "cron.task_failed"
	PhaseFailed = "cron.phase_failed"
	Fatal       = "cron.fatal"
)

// Sink receives a named failure. Implementations must not block the tick
// and must not panic.
type Sink interface {
	Fire(ctx context.Context, name string, err error)
}

// Event is a fired failure as seen by Bus subscribers and Recorder.
type Event struct {
	Name string
	Time time.Time
	Err  error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, name string, err error)

func (f SinkFunc) Fire(ctx context.Context, name string, err error) { f(ctx, name, err) }

// Multi fans every event out to each non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Fire(ctx context.Context, name string, err error) {
	for _, s := range m {
		s.Fire(ctx, name, err)
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, string, error) {})

// Recorder keeps every fired event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Fire(_ context.Context, name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Time: time.Now(), Err: err})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events with the given name were fired.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

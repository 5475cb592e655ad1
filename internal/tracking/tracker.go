// Package tracking remembers recent tick reports so operators can inspect
// them after the fact.
package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/albachteng/crontick/internal/cron"
)

type TickStatus string

const (
	StatusOK     TickStatus = "ok"
	StatusFailed TickStatus = "failed"
)

type TickInfo struct {
	Report   *cron.Report
	Trigger  string
	Status   TickStatus
	Finished time.Time
}

// TickTracker keeps the last Capacity reports, evicting the oldest.
type TickTracker struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	ticks    map[string]*TickInfo
}

const defaultCapacity = 100

func NewTickTracker(capacity int) *TickTracker {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &TickTracker{
		capacity: capacity,
		ticks:    make(map[string]*TickInfo),
	}
}

// Record stores report under its tick id.
func (t *TickTracker) Record(trigger string, report *cron.Report) {
	if report == nil {
		return
	}
	status := StatusOK
	if !report.OK() {
		status = StatusFailed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.ticks[report.TickID]; !exists {
		t.order = append(t.order, report.TickID)
	}
	t.ticks[report.TickID] = &TickInfo{
		Report:   report,
		Trigger:  trigger,
		Status:   status,
		Finished: report.StartedAt.Add(report.Duration),
	}

	for len(t.order) > t.capacity {
		delete(t.ticks, t.order[0])
		t.order = t.order[1:]
	}
}

func (t *TickTracker) Get(id string) (*TickInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, exists := t.ticks[id]
	return info, exists
}

// List returns ticks newest first.
func (t *TickTracker) List() []*TickInfo {
	return t.ListByStatus("")
}

// ListByStatus filters List; an empty status matches all.
func (t *TickTracker) ListByStatus(status TickStatus) []*TickInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*TickInfo, 0, len(t.order))
	for i := len(t.order) - 1; i >= 0; i-- {
		info := t.ticks[t.order[i]]
		if status == "" || info.Status == status {
			out = append(out, info)
		}
	}
	return out
}

// Ticker runs one tick. Satisfied by *cron.Engine.
type Ticker interface {
	ExecuteCron(ctx context.Context, opts cron.Options) *cron.Report
}

// Recording wraps a Ticker so every report it returns is recorded.
type Recording struct {
	Ticker  Ticker
	Tracker *TickTracker
	Trigger string
}

func (r Recording) ExecuteCron(ctx context.Context, opts cron.Options) *cron.Report {
	report := r.Ticker.ExecuteCron(ctx, opts)
	r.Tracker.Record(r.Trigger, report)
	return report
}

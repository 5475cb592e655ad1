package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/albachteng/crontick/internal/jobs"
)

// MemoryQueue is a non-durable Queue with the same ordering as SQLiteQueue.
type MemoryQueue struct {
	mu     sync.Mutex
	now    func() time.Time
	nextID jobs.JobID
	items  []*jobs.Record
}

func NewMemoryQueue(opts ...Option) *MemoryQueue {
	o := buildOptions(opts)
	return &MemoryQueue{now: o.now, items: make([]*jobs.Record, 0)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, handlerName string, args jobs.Args) (jobs.JobID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateName(handlerName); err != nil {
		return 0, err
	}
	payload, err := jobs.EncodeArgs(args)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	q.items = append(q.items, &jobs.Record{
		ID:          q.nextID,
		HandlerName: handlerName,
		Params:      payload,
		CreatedAt:   time.Unix(q.now().Unix(), 0),
	})
	return q.nextID, nil
}

func (q *MemoryQueue) DequeueBatch(ctx context.Context, limit int) ([]*jobs.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.sortLocked()
	n := min(batchLimit(limit), len(q.items))
	batch := q.items[:n:n]
	q.items = append([]*jobs.Record(nil), q.items[n:]...)
	return batch, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *MemoryQueue) List(ctx context.Context, limit int) ([]*jobs.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sortLocked()
	n := len(q.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*jobs.Record, n)
	for i := range out {
		r := *q.items[i]
		out[i] = &r
	}
	return out, nil
}

func (q *MemoryQueue) sortLocked() {
	sort.SliceStable(q.items, func(i, j int) bool {
		a, b := q.items[i], q.items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

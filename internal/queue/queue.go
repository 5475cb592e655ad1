// Package queue is the durable FIFO of one-off jobs drained by each cron tick.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/albachteng/crontick/internal/jobs"
)

// DefaultBatchSize is how many jobs a tick takes when no limit is given.
const DefaultBatchSize = 5

var ErrInvalidHandlerName = errors.New("handler name must not be empty")

// Queue stores jobs until a tick claims them.
//
// DequeueBatch removes the records it returns; a claimed job is never handed
// out twice, even if its handler later fails.
type Queue interface {
	Enqueue(ctx context.Context, handlerName string, args jobs.Args) (jobs.JobID, error)
	DequeueBatch(ctx context.Context, limit int) ([]*jobs.Record, error)
	Len(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]*jobs.Record, error)
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time stamped on enqueued jobs.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidHandlerName
	}
	return nil
}

func batchLimit(limit int) int {
	if limit <= 0 {
		return DefaultBatchSize
	}
	return limit
}

// Package interval records when each recurring task last ran successfully.
package interval

import (
	"context"
	"time"
)

// Record is the durable last-run timestamp for one task, keyed by record code.
type Record struct {
	Code      string
	UpdatedAt time.Time
}

// Store is the interval table.
//
// Get returns the stored timestamp for code. If there is none it stamps the
// current time, stores it, and reports bootstrapped=true; repeated calls then
// return that same stamp. Update sets the stamp to now, inserting if needed.
// Set writes an explicit stamp the same way.
type Store interface {
	Get(ctx context.Context, code string) (updatedAt time.Time, bootstrapped bool, err error)
	Update(ctx context.Context, code string) error
	Set(ctx context.Context, code string, t time.Time) error
	List(ctx context.Context) ([]Record, error)
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now. Stamps are truncated to whole seconds.
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

package cron

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/albachteng/crontick/internal/guard"
)

// invoke calls fn, turning a panic into an error. With a positive timeout fn
// runs on its own goroutine and is abandoned once the deadline passes.
func invoke[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return call(ctx, fn)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := call(ctx, fn)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errors.Wrapf(ErrHandlerTimeout, "after %s", timeout)
		}
		return zero, ctx.Err()
	}
}

func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = guard.Recovered(r)
		}
	}()
	return fn(ctx)
}

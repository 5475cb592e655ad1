package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueue(t *testing.T) {
	t.Run("dequeues in FIFO order with a bounded batch", func(t *testing.T) {
		q := NewMemoryQueue()
		ctx := context.Background()

		for i := 0; i < 12; i++ {
			if _, err := q.Enqueue(ctx, "count::up", mustArgs(t, i)); err != nil {
				t.Fatalf("enqueue %d: %v", i, err)
			}
		}

		batch, err := q.DequeueBatch(ctx, 0)
		if err != nil {
			t.Fatalf("dequeue failed: %v", err)
		}
		if len(batch) != DefaultBatchSize {
			t.Fatalf("got %d jobs, want %d", len(batch), DefaultBatchSize)
		}
		for i, r := range batch {
			args, _ := r.Args()
			if n, _ := args.Int(0); n != int64(i) {
				t.Errorf("job %d carries %d", i, n)
			}
		}

		if n, _ := q.Len(ctx); n != 7 {
			t.Errorf("got %d remaining, want 7", n)
		}
	})

	t.Run("orders by created_at before id", func(t *testing.T) {
		clock := newStepClock()
		q := NewMemoryQueue(WithClock(clock.Now))
		ctx := context.Background()

		q.Enqueue(ctx, "a::late", nil)
		clock.Advance(-time.Minute)
		q.Enqueue(ctx, "a::early", nil)

		list, _ := q.List(ctx, 1)
		if len(list) != 1 || list[0].HandlerName != "a::early" {
			t.Errorf("got %+v, want a::early first", list)
		}
	})

	t.Run("list does not consume", func(t *testing.T) {
		q := NewMemoryQueue()
		ctx := context.Background()
		q.Enqueue(ctx, "a::b", nil)

		if list, _ := q.List(ctx, 0); len(list) != 1 {
			t.Fatalf("got %d listed, want 1", len(list))
		}
		batch, _ := q.DequeueBatch(ctx, 5)
		if len(batch) != 1 {
			t.Errorf("got %d dequeued, want 1", len(batch))
		}
		batch, _ = q.DequeueBatch(ctx, 5)
		if len(batch) != 0 {
			t.Errorf("got %d dequeued from drained queue, want 0", len(batch))
		}
	})

	t.Run("rejects empty handler name", func(t *testing.T) {
		q := NewMemoryQueue()
		if _, err := q.Enqueue(context.Background(), "", nil); err != ErrInvalidHandlerName {
			t.Errorf("got %v, want %v", err, ErrInvalidHandlerName)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		q := NewMemoryQueue()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := q.Enqueue(ctx, "a::b", nil); err == nil {
			t.Error("expected error with cancelled context")
		}
		if _, err := q.DequeueBatch(ctx, 1); err == nil {
			t.Error("expected error with cancelled context")
		}
	})
}

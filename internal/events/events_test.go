package events

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestMulti(t *testing.T) {
	var a, b Recorder
	sink := Multi(&a, nil, &b)

	sink.Fire(context.Background(), JobFailed, errors.New("boom"))

	if a.Count(JobFailed) != 1 || b.Count(JobFailed) != 1 {
		t.Errorf("got %d and %d events, want 1 each", a.Count(JobFailed), b.Count(JobFailed))
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	r.Fire(ctx, TaskFailed, errors.New("one"))
	r.Fire(ctx, TaskFailed, errors.New("two"))
	r.Fire(ctx, Fatal, nil)

	if got := r.Count(TaskFailed); got != 2 {
		t.Errorf("got %d task failures, want 2", got)
	}
	events := r.Events()
	if len(events) != 3 || events[2].Name != Fatal {
		t.Errorf("unexpected events %+v", events)
	}

	r.Reset()
	if len(r.Events()) != 0 {
		t.Error("expected reset to clear events")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewLogSink(logger)

	err := errors.WithDetail(errors.New("disk full"), "free=0")
	sink.Fire(context.Background(), PhaseFailed, err)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "event=cron.phase_failed", "disk full", "free=0"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestBus(t *testing.T) {
	t.Run("delivers to subscribers", func(t *testing.T) {
		bus := NewBus()
		ch, unsubscribe := bus.Subscribe(1)
		defer unsubscribe()

		bus.Fire(context.Background(), JobFailed, errors.New("boom"))

		select {
		case e := <-ch:
			if e.Name != JobFailed || e.Time.IsZero() {
				t.Errorf("unexpected event %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	})

	t.Run("drops when subscriber is full", func(t *testing.T) {
		bus := NewBus()
		ch, unsubscribe := bus.Subscribe(1)
		defer unsubscribe()

		bus.Publish(Event{Name: "first"})
		bus.Publish(Event{Name: "second"})

		if e := <-ch; e.Name != "first" {
			t.Errorf("got %s, want first", e.Name)
		}
		select {
		case e := <-ch:
			t.Errorf("unexpected extra event %+v", e)
		default:
		}
	})

	t.Run("publish after unsubscribe does not panic", func(t *testing.T) {
		bus := NewBus()
		_, unsubscribe := bus.Subscribe(1)
		unsubscribe()
		unsubscribe()
		bus.Publish(Event{Name: "late"})
	})
}

func TestRing(t *testing.T) {
	r := NewRing(3)
	for _, name := range []string{"a", "b"} {
		r.Add(Event{Name: name})
	}
	if got := names(r.Snapshot()); got != "a,b" {
		t.Errorf("got %s, want a,b", got)
	}

	for _, name := range []string{"c", "d", "e"} {
		r.Add(Event{Name: name})
	}
	if got := names(r.Snapshot()); got != "c,d,e" {
		t.Errorf("got %s, want c,d,e", got)
	}
}

func TestRingFollow(t *testing.T) {
	bus := NewBus()
	r := NewRing(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Follow(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for len(r.Snapshot()) == 0 && time.Now().Before(deadline) {
		bus.Publish(Event{Name: TaskFailed})
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if len(r.Snapshot()) == 0 {
		t.Fatal("ring never received an event")
	}
}

func names(events []Event) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = e.Name
	}
	return strings.Join(parts, ",")
}

func TestBusPublishDuringUnsubscribe(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		ch, unsubscribe := bus.Subscribe(1)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				bus.Publish(Event{Name: TaskFailed})
			}
		}()
		go func() {
			defer wg.Done()
			unsubscribe()
		}()
		go func() {
			for range ch {
			}
		}()
	}
	wg.Wait()

	bus.mu.RLock()
	defer bus.mu.RUnlock()
	if len(bus.subs) != 0 {
		t.Errorf("got %d subscribers left, want 0", len(bus.subs))
	}
}

package events

import (
	"context"
	"sync"
)

// Ring remembers the most recent events, oldest first.
type Ring struct {
	mu   sync.Mutex
	buf  []Event
	next int
	full bool
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = 50
	}
	return &Ring{buf: make([]Event, size)}
}

func (r *Ring) Add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Event(nil), r.buf[:r.next]...)
	}
	out := make([]Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Follow copies events from bus into the ring until ctx is done.
func (r *Ring) Follow(ctx context.Context, bus *Bus) {
	ch, unsubscribe := bus.Subscribe(len(r.buf))
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			r.Add(e)
		}
	}
}

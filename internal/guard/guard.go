// Package guard runs a cron tick inside a scope that reserves memory
// headroom and turns an escaping panic into a reported fatal error.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/albachteng/crontick/internal/events"
)

type Config struct {
	// MemoryReserveBytes is allocated and paged in before fn runs and
	// released after.
	MemoryReserveBytes int
}

// Run calls fn. Whatever way fn exits, the reserve is released. A panic is
// converted to an error carrying a stack and a memory snapshot, fired to sink
// as events.Fatal and returned. Run itself never panics.
func Run(ctx context.Context, cfg Config, sink events.Sink, logger *slog.Logger, fn func(context.Context)) (fatal error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = events.Discard
	}

	ballast := reserve(cfg.MemoryReserveBytes)

	defer func() {
		r := recover()

		runtime.KeepAlive(ballast)
		if ballast != nil {
			ballast = nil
			debug.FreeOSMemory()
		}

		if r == nil {
			return
		}
		fatal = annotate(Recovered(r))
		logger.ErrorContext(ctx, "tick aborted by panic", "error", fatal.Error())
		sink.Fire(ctx, events.Fatal, fatal)
	}()

	fn(ctx)
	return nil
}

// reserve allocates n bytes and writes one byte per page so the OS commits
// them rather than leaving the allocation as untouched virtual memory.
func reserve(n int) []byte {
	if n <= 0 {
		return nil
	}
	b := make([]byte, n)
	for i := 0; i < n; i += os.Getpagesize() {
		b[i] = 1
	}
	return b
}

// Recovered converts a value returned by recover into an error with a stack.
func Recovered(r any) error {
	if err, ok := r.(error); ok {
		return errors.WithStack(errors.Wrap(err, "panic"))
	}
	return errors.WithStack(errors.Newf("panic: %v", r))
}

func annotate(err error) error {
	snap, snapErr := TakeSnapshot()
	if snapErr != nil {
		return errors.WithDetailf(err, "memory snapshot unavailable: %v", snapErr)
	}
	return errors.WithDetail(err, snap.String())
}

// Snapshot is the host and process memory at a point in time.
type Snapshot struct {
	TotalBytes     uint64
	AvailableBytes uint64
	HeapAllocBytes uint64
}

func TakeSnapshot() (Snapshot, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap := Snapshot{HeapAllocBytes: ms.HeapAlloc}

	v, err := mem.VirtualMemory()
	if err != nil {
		return snap, errors.Wrap(err, "failed to get memory stats")
	}
	snap.TotalBytes = v.Total
	snap.AvailableBytes = v.Available
	return snap, nil
}

func (s Snapshot) String() string {
	return fmt.Sprintf("mem total=%d available=%d heap_alloc=%d", s.TotalBytes, s.AvailableBytes, s.HeapAllocBytes)
}

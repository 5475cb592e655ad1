package interval

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a non-durable Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{now: o.now, records: make(map[string]time.Time)}
}

func (m *MemoryStore) Get(ctx context.Context, code string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.records[code]; ok {
		return t, false, nil
	}
	t := m.stamp()
	m.records[code] = t
	return t, true, nil
}

func (m *MemoryStore) Update(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[code] = m.stamp()
	return nil
}

func (m *MemoryStore) Set(ctx context.Context, code string, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[code] = time.Unix(t.Unix(), 0)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.records))
	for code, t := range m.records {
		out = append(out, Record{Code: code, UpdatedAt: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// stamp matches the SQLite store's whole-second resolution.
func (m *MemoryStore) stamp() time.Time {
	return time.Unix(m.now().Unix(), 0)
}

package jobs

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// HandlerFunc executes one dequeued job.
type HandlerFunc func(ctx context.Context, args Args) error

// Registry maps "scope::method" names to handlers. It is built at startup and
// handed to the engine; lookups never reflect.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

func (r *Registry) Register(name string, fn HandlerFunc) error {
	scope, method, err := ParseHandlerName(name)
	if err != nil {
		return err
	}
	if fn == nil {
		return errors.Newf("nil handler for %s", name)
	}

	key := HandlerName(scope, method)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[key]; exists {
		return errors.Wrapf(ErrHandlerExists, "%s", key)
	}
	r.handlers[key] = fn
	return nil
}

func (r *Registry) MustRegister(name string, fn HandlerFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// RegisterScope registers every method of one scope. Nothing is registered if
// any name collides.
func (r *Registry) RegisterScope(scope string, methods map[string]HandlerFunc) error {
	names := make([]string, 0, len(methods))
	for method := range methods {
		names = append(names, method)
	}
	sort.Strings(names)

	for _, method := range names {
		name := HandlerName(scope, method)
		if _, _, err := ParseHandlerName(name); err != nil {
			return err
		}
		if r.Has(name) {
			return errors.Wrapf(ErrHandlerExists, "%s", name)
		}
	}
	for _, method := range names {
		if err := r.Register(HandlerName(scope, method), methods[method]); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the handler for scope and method, if one is registered.
func (r *Registry) Resolve(scope, method string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.handlers[HandlerName(scope, method)]
	return fn, ok
}

func (r *Registry) Has(name string) bool {
	scope, method, err := ParseHandlerName(name)
	if err != nil {
		return false
	}
	_, ok := r.Resolve(scope, method)
	return ok
}

// Names returns the registered handler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Package dimensions maintains the registry of context providers. Each
// provider is a named getter for one page-context dimension (section, geo,
// and so on). A snapshot samples every registered getter in registration
// order, so targeting evaluation sees a consistent, ordered view.
package dimensions

import (
	"log/slog"
	"sync"

	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// Getter returns the current value of one dimension.
type Getter func() (any, error)

// Registry holds named dimension getters.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	getters map[string]Getter
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used when a getter fails.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty dimension registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		getters: make(map[string]Getter),
		logger:  slog.Default().WithGroup("dimensions"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces the getter for a dimension. Re-registering keeps
// the dimension's original position in the snapshot order.
func (r *Registry) Register(name string, getter Getter) {
	if name == "" || getter == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.getters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.getters[name] = getter
}

// RegisterValue registers a fixed-value dimension.
func (r *Registry) RegisterValue(name string, value any) {
	r.Register(name, func() (any, error) { return value, nil })
}

// Names returns the registered dimension names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Snapshot samples every registered getter and returns a fresh ordered
// snapshot. A getter that fails or panics is logged and contributes a nil
// value; one broken dimension must not abort sampling of the others.
func (r *Registry) Snapshot() targeting.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(targeting.Snapshot, 0, len(r.order))
	for _, name := range r.order {
		snap = append(snap, targeting.ContextValue{
			Name:  name,
			Value: r.sample(name, r.getters[name]),
		})
	}
	return snap
}

func (r *Registry) sample(name string, getter Getter) (value any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("dimension getter panicked", "dimension", name, "panic", rec)
			value = nil
		}
	}()
	v, err := getter()
	if err != nil {
		r.logger.Warn("dimension getter failed", "dimension", name, "error", err)
		return nil
	}
	return v
}

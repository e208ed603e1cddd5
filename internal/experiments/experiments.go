// Package experiments holds the experiment registry and the session bucket.
// A session is assigned one testgroup in [0,99]; each experiment claims a
// contiguous bucket range, so assignment is stable for the whole session.
package experiments

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/atlanticdynamic/scriptgate/internal/plugins"
	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// Buckets is the size of the testgroup domain [0, Buckets-1].
const Buckets = 100

// Suffixes rendered by GetTargetingIds for ad-targeting key-value reporting.
const (
	appliedSuffix  = "_a"
	eligibleSuffix = "_e"
)

// Range is an inclusive bucket range over [0,99].
type Range struct {
	Min int
	Max int
}

// Contains reports whether a bucket falls inside the range, both ends
// inclusive.
func (r Range) Contains(bucket int) bool {
	return bucket >= r.Min && bucket <= r.Max
}

// ApplyFunc mutates a plugin descriptor in place. For global experiments the
// descriptor is nil and the function acts purely by side effect. An error
// (or panic) is logged and never blocks other experiments or the load.
type ApplyFunc func(d *plugins.Descriptor) error

// Experiment is one registered experiment.
type Experiment struct {
	// ID is the unique registry key.
	ID string

	Active bool

	// TestRange selects the buckets that receive the treatment.
	TestRange Range

	// Plugin is the exact plugin name the experiment targets. Empty means
	// global: the experiment only fires on a global apply pass, never during
	// per-plugin applies.
	Plugin string

	Include targeting.RuleSet
	Exclude targeting.RuleSet

	Apply ApplyFunc
}

// unconditional reports whether the experiment has no context rules.
func (e *Experiment) unconditional() bool {
	return e.Include.IsZero() && e.Exclude.IsZero()
}

// Status is a snapshot of the manager's session state.
type Status struct {
	Testgroup int
	Applied   []string
	Eligible  []string
}

// Manager holds the experiment registry for one session. Applied and
// eligible accumulate across calls and are never deduplicated: the same id
// appears once per load the experiment fired for.
type Manager struct {
	mu        sync.Mutex
	testgroup int
	order     []string
	registry  map[string]*Experiment
	applied   []string
	eligible  []string

	engine *targeting.Engine
	logger *slog.Logger
}

var _ plugins.ExperimentApplier = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithTestgroup fixes the session bucket instead of drawing one at random.
// Values outside [0,99] are reduced modulo the bucket count.
func WithTestgroup(tg int) Option {
	return func(m *Manager) {
		m.testgroup = ((tg % Buckets) + Buckets) % Buckets
	}
}

// WithEngine sets the targeting engine used for experiment context rules.
func WithEngine(e *targeting.Engine) Option {
	return func(m *Manager) { m.engine = e }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager. The testgroup is drawn uniformly at random
// once unless WithTestgroup supplies it.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		testgroup: rand.IntN(Buckets),
		registry:  make(map[string]*Experiment),
		logger:    slog.Default().WithGroup("experiments"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		m.engine = targeting.NewEngine(targeting.WithLogger(m.logger))
	}
	return m
}

// Testgroup returns the session bucket.
func (m *Manager) Testgroup() int {
	return m.testgroup
}

// Register adds an experiment to the registry. It returns false when the id
// is missing. Re-registering an id replaces the definition but keeps its
// position in registration order.
func (m *Manager) Register(exp Experiment) bool {
	if exp.ID == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.registry[exp.ID]; !exists {
		m.order = append(m.order, exp.ID)
	}
	m.registry[exp.ID] = &exp
	return true
}

// Unregister removes an experiment. Unknown ids are a silent no-op.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.registry[id]; !exists {
		return
	}
	delete(m.registry, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// IsInExperiment reports whether the session bucket falls inside an active
// registered experiment's range. Stable for the session while the
// experiment's range and active flag are unchanged.
func (m *Manager) IsInExperiment(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.registry[id]
	return ok && exp.Active && exp.TestRange.Contains(m.testgroup)
}

// Apply runs every matching experiment against the descriptor before its
// targeting rules are evaluated. An experiment matches when it is active,
// targets exactly this plugin name, and its own context rules pass. Matching
// experiments inside the session's bucket range mutate the descriptor and
// accumulate as applied; those outside accumulate as eligible, the control
// group signal.
func (m *Manager) Apply(ctx context.Context, pluginName string, d *plugins.Descriptor, snapshot targeting.Snapshot) {
	m.mu.Lock()
	ordered := make([]*Experiment, 0, len(m.order))
	for _, id := range m.order {
		ordered = append(ordered, m.registry[id])
	}
	tg := m.testgroup
	m.mu.Unlock()

	for _, exp := range ordered {
		if !exp.Active || exp.Plugin != pluginName {
			continue
		}
		if !exp.unconditional() {
			decision := m.engine.Evaluate(ctx, exp.Include, exp.Exclude, snapshot)
			if !decision.Matched {
				continue
			}
		}

		if exp.TestRange.Contains(tg) {
			m.runApply(exp, d)
			m.record(&m.applied, exp.ID)
		} else {
			m.record(&m.eligible, exp.ID)
		}
	}
}

// ApplyGlobal runs the global apply pass: only experiments with no plugin
// target fire, with a nil descriptor.
func (m *Manager) ApplyGlobal(ctx context.Context, snapshot targeting.Snapshot) {
	m.Apply(ctx, "", nil, snapshot)
}

func (m *Manager) record(list *[]string, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*list = append(*list, id)
}

func (m *Manager) runApply(exp *Experiment, d *plugins.Descriptor) {
	if exp.Apply == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("experiment apply panicked", "experiment", exp.ID, "panic", r)
		}
	}()
	if err := exp.Apply(d); err != nil {
		m.logger.Warn("experiment apply failed", "experiment", exp.ID, "error", err)
	}
}

// GetStatus returns the session bucket and the accumulated applied and
// eligible ids.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Testgroup: m.testgroup,
		Applied:   append([]string(nil), m.applied...),
		Eligible:  append([]string(nil), m.eligible...),
	}
}

// GetTargetingIds renders applied ids with the _a suffix followed by
// eligible ids with the _e suffix, preserving accumulation order.
func (m *Manager) GetTargetingIds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.applied)+len(m.eligible))
	for _, id := range m.applied {
		out = append(out, id+appliedSuffix)
	}
	for _, id := range m.eligible {
		out = append(out, id+eligibleSuffix)
	}
	return out
}

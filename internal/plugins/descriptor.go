package plugins

import (
	"log/slog"
	"sync"
	"time"

	"github.com/atlanticdynamic/scriptgate/internal/plugins/finitestate"
	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// Default values applied during descriptor normalization.
const (
	DefaultType     = "text/javascript"
	DefaultLocation = LocationHead
	DefaultTimeout  = 5 * time.Second
)

// Script attachment locations.
const (
	LocationHead = "head"
	LocationBody = "body"
)

// Attribute is one ordered key/value pair attached to the injected script.
type Attribute struct {
	Key   string
	Value string
}

// Hooks are caller-supplied lifecycle callbacks. Every hook runs inside an
// error boundary; a panicking hook is logged and never affects the load
// outcome.
type Hooks struct {
	Preload   func(*Descriptor)
	OnLoad    func(*Descriptor)
	OnError   func(*Descriptor, error)
	OnTimeout func(*Descriptor)
	OnIgnore  func(*Descriptor, string)
}

// Performance collects the timestamps of one load. A zero time means the
// event never happened. Latency is the terminal timestamp minus Init.
type Performance struct {
	Init      time.Time
	Preload   time.Time
	Requested time.Time
	Received  time.Time
	Error     time.Time
	Timeout   time.Time
	Status    string
	Latency   time.Duration
}

// Descriptor describes one loadable plugin and carries its runtime state.
// Exactly one descriptor instance exists per name inside a Loader;
// re-submitting the same name merges into the stored instance so repeated
// loads observe and extend prior state, including experiment mutations.
type Descriptor struct {
	// Identity. ID is the injected element id and defaults to Name.
	Name string
	ID   string

	// Loading.
	URL        string
	Type       string
	Location   string
	Async      bool
	Timeout    time.Duration
	Attributes []Attribute

	// Gating.
	Active        bool
	Domains       []string
	ConsentStates []string

	// Targeting.
	Include targeting.RuleSet
	Exclude targeting.RuleSet

	Hooks Hooks

	// Tag is the executor-owned handle to the injected resource. It is set by
	// the script executor and owned by the loader for the descriptor's
	// lifetime.
	Tag any

	// perfMu guards perf: the timeout alarm and executor callback write it
	// from their own goroutines while PerformanceReport reads it.
	perfMu sync.Mutex
	perf   Performance

	fsm finitestate.Machine
}

// Status returns the current lifecycle state.
func (d *Descriptor) Status() string {
	if d.fsm == nil {
		return finitestate.StatusInit
	}
	return d.fsm.GetState()
}

// Performance returns a copy of the load performance record, with Status
// mirroring the current lifecycle state.
func (d *Descriptor) Performance() Performance {
	d.perfMu.Lock()
	p := d.perf
	d.perfMu.Unlock()
	p.Status = d.Status()
	return p
}

// updatePerf applies a mutation to the performance record under its lock.
func (d *Descriptor) updatePerf(fn func(*Performance)) {
	d.perfMu.Lock()
	defer d.perfMu.Unlock()
	fn(&d.perf)
}

// normalize applies defaults to optional fields. Name must already be set.
func (d *Descriptor) normalize() {
	if d.ID == "" {
		d.ID = d.Name
	}
	if d.Type == "" {
		d.Type = DefaultType
	}
	if d.Location == "" {
		d.Location = DefaultLocation
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
}

// merge copies the non-zero fields of a re-submitted descriptor into the
// stored one. Accumulated runtime state (status, performance, tag) and the
// Active flag survive the merge: an ignored plugin stays inactive until the
// caller resets it explicitly.
func (d *Descriptor) merge(in *Descriptor) {
	if in.ID != "" {
		d.ID = in.ID
	}
	if in.URL != "" {
		d.URL = in.URL
	}
	if in.Type != "" {
		d.Type = in.Type
	}
	if in.Location != "" {
		d.Location = in.Location
	}
	if in.Timeout > 0 {
		d.Timeout = in.Timeout
	}
	if len(in.Attributes) > 0 {
		d.Attributes = in.Attributes
	}
	if len(in.Domains) > 0 {
		d.Domains = in.Domains
	}
	if len(in.ConsentStates) > 0 {
		d.ConsentStates = in.ConsentStates
	}
	if !in.Include.IsZero() {
		d.Include = in.Include
	}
	if !in.Exclude.IsZero() {
		d.Exclude = in.Exclude
	}
	d.Async = d.Async || in.Async
	mergeHooks(&d.Hooks, in.Hooks)
}

func mergeHooks(dst *Hooks, src Hooks) {
	if src.Preload != nil {
		dst.Preload = src.Preload
	}
	if src.OnLoad != nil {
		dst.OnLoad = src.OnLoad
	}
	if src.OnError != nil {
		dst.OnError = src.OnError
	}
	if src.OnTimeout != nil {
		dst.OnTimeout = src.OnTimeout
	}
	if src.OnIgnore != nil {
		dst.OnIgnore = src.OnIgnore
	}
}

// wantsConsent reports whether the descriptor requires a consent check:
// required states exist and are not wildcarded.
func (d *Descriptor) wantsConsent() bool {
	if len(d.ConsentStates) == 0 {
		return false
	}
	for _, s := range d.ConsentStates {
		if s == targeting.Wildcard {
			return false
		}
	}
	return true
}

// runHook invokes a lifecycle hook inside an error boundary.
func runHook(logger *slog.Logger, name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("lifecycle hook panicked", "hook", name, "panic", r)
		}
	}()
	fn()
}

// Package plugins contains the plugin orchestration engine: the loader that
// drives each plugin descriptor through its lifecycle state machine, gated
// by URL overrides, activity, consent, domain restrictions, experiment
// mutation and targeting rules.
package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atlanticdynamic/scriptgate/internal/dimensions"
	"github.com/atlanticdynamic/scriptgate/internal/events"
	"github.com/atlanticdynamic/scriptgate/internal/plugins/finitestate"
	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// Lifecycle event names published on the bus as {prefix}.{plugin}.{event}.
const (
	EventLoad             = "load"
	EventError            = "error"
	EventTimeout          = "timeout"
	EventIgnore           = "ignore"
	EventInactive         = "inactive"
	EventOverrideEnabled  = "override.enabled"
	EventOverrideDisabled = "override.disabled"
	EventConsentPending   = "consent.pending"
	EventComplete         = "complete"
)

// DefaultEventPrefix is the topic prefix used when none is configured.
const DefaultEventPrefix = "plugins"

// ConsentOracle answers whether the required consent states are granted.
// Mirrors consent.Oracle; declared here so the loader depends only on what
// it calls.
type ConsentOracle interface {
	Check(required []string) bool
}

type consentEntry struct {
	desc *Descriptor
	op   *Operation
}

// Loader owns the plugin descriptors, the consent queue and the per-plugin
// lifecycle machines. All gate checks for one load run sequentially on the
// submitting goroutine; only script completion and the timeout alarm are
// asynchronous, and their race is settled by the state machine guard.
type Loader struct {
	mu          sync.Mutex
	descriptors map[string]*Descriptor
	queue       []consentEntry

	bus         events.Publisher
	oracle      ConsentOracle
	executor    Executor
	experiments ExperimentApplier
	dims        *dimensions.Registry
	engine      *targeting.Engine
	overrides   Overrides
	metrics     Recorder
	host        func() string
	eventPrefix string

	logger  *slog.Logger
	handler slog.Handler
}

// Option configures a Loader.
type Option func(*Loader)

// WithEventBus sets the bus lifecycle events are published on.
func WithEventBus(bus events.Publisher) Option {
	return func(l *Loader) { l.bus = bus }
}

// WithConsentOracle sets the consent oracle. Without one, consent-gated
// plugins are treated as granted.
func WithConsentOracle(oracle ConsentOracle) Option {
	return func(l *Loader) { l.oracle = oracle }
}

// WithExecutor sets the script executor. Required.
func WithExecutor(e Executor) Option {
	return func(l *Loader) { l.executor = e }
}

// WithExperiments sets the experiment applier.
func WithExperiments(a ExperimentApplier) Option {
	return func(l *Loader) { l.experiments = a }
}

// WithDimensions sets the context-provider registry.
func WithDimensions(r *dimensions.Registry) Option {
	return func(l *Loader) { l.dims = r }
}

// WithTargeting sets the targeting engine.
func WithTargeting(e *targeting.Engine) Option {
	return func(l *Loader) { l.engine = e }
}

// WithOverrides sets the URL override lists.
func WithOverrides(o Overrides) Option {
	return func(l *Loader) { l.overrides = o }
}

// WithMetrics sets the load outcome recorder.
func WithMetrics(r Recorder) Option {
	return func(l *Loader) { l.metrics = r }
}

// WithHost fixes the host the domain gate compares against.
func WithHost(host string) Option {
	return func(l *Loader) { l.host = func() string { return host } }
}

// WithHostFunc supplies the host dynamically.
func WithHostFunc(fn func() string) Option {
	return func(l *Loader) { l.host = fn }
}

// WithEventPrefix sets the topic prefix for published events.
func WithEventPrefix(prefix string) Option {
	return func(l *Loader) { l.eventPrefix = prefix }
}

// WithLogger sets the loader's logger. Per-operation loggers and lifecycle
// machines derive their handlers from it.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
		l.handler = logger.Handler()
	}
}

// New creates a Loader. A script executor is required; everything else has a
// working default.
func New(opts ...Option) (*Loader, error) {
	l := &Loader{
		descriptors: make(map[string]*Descriptor),
		eventPrefix: DefaultEventPrefix,
		host:        func() string { return "" },
		logger:      slog.Default().WithGroup("plugins.Loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.executor == nil {
		return nil, ErrNoExecutor
	}
	if l.handler == nil {
		l.handler = l.logger.Handler()
	}
	if l.dims == nil {
		l.dims = dimensions.NewRegistry(dimensions.WithLogger(l.logger))
	}
	if l.engine == nil {
		l.engine = targeting.NewEngine(targeting.WithLogger(l.logger))
	}
	return l, nil
}

// Dimensions returns the loader's context-provider registry.
func (l *Loader) Dimensions() *dimensions.Registry {
	return l.dims
}

// Load submits a plugin descriptor and drives it through the lifecycle
// gates. The returned operation settles exactly once with the terminal
// status; a consent-gated load may stay pending until ProcessConsentQueue
// observes a grant. Re-submitting a name merges into the stored descriptor,
// preserving state accumulated by earlier loads.
func (l *Loader) Load(ctx context.Context, in *Descriptor) (*Operation, error) {
	if in == nil {
		return nil, ErrNilDescriptor
	}
	if in.Name == "" {
		return nil, ErrMissingName
	}

	d, err := l.adopt(in)
	if err != nil {
		return nil, err
	}

	op := newOperation(d.Name, l.handler)
	op.logger.Debug("load submitted", "url", d.URL, "active", d.Active)
	l.start(ctx, d, op)
	return op, nil
}

// adopt normalizes the submitted descriptor into the stored instance for its
// name, creating it on first sight. Exactly one descriptor exists per name.
func (l *Loader) adopt(in *Descriptor) (*Descriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, exists := l.descriptors[in.Name]
	if !exists {
		d = in
		d.normalize()
		machine, err := finitestate.New(l.handler)
		if err != nil {
			return nil, fmt.Errorf("failed to create lifecycle machine: %w", err)
		}
		d.fsm = machine
		l.descriptors[d.Name] = d
	} else {
		switch state := d.fsm.GetState(); {
		case finitestate.Terminal(state):
			if err := d.fsm.Transition(finitestate.StatusInit); err != nil {
				return nil, fmt.Errorf("failed to reset lifecycle: %w", err)
			}
		case state != finitestate.StatusInit:
			return nil, fmt.Errorf("%w: %s is %s", ErrLoadInFlight, in.Name, state)
		}
		d.merge(in)
		d.normalize()
	}

	d.updatePerf(func(p *Performance) {
		*p = Performance{Init: time.Now()}
	})
	return d, nil
}

// Reset discards the stored descriptor for a name, so the next Load starts
// from a fresh record instead of extending accumulated state.
func (l *Loader) Reset(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.descriptors, name)
}

// Descriptor returns the stored descriptor for a name.
func (l *Loader) Descriptor(name string) (*Descriptor, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.descriptors[name]
	return d, ok
}

// Names returns the names of all registered plugins.
func (l *Loader) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.descriptors))
	for name := range l.descriptors {
		names = append(names, name)
	}
	return names
}

// PerformanceReport returns a snapshot of every plugin's performance record.
func (l *Loader) PerformanceReport() map[string]Performance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Performance, len(l.descriptors))
	for name, d := range l.descriptors {
		out[name] = d.Performance()
	}
	return out
}

// QueuedConsent returns the names of plugins parked in the consent queue.
func (l *Loader) QueuedConsent() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.queue))
	for _, e := range l.queue {
		names = append(names, e.desc.Name)
	}
	return names
}

// start runs the gate sequence from the top: override, activity, consent.
func (l *Loader) start(ctx context.Context, d *Descriptor, op *Operation) {
	switch l.overrides.Decision(d.Name) {
	case OverrideEnabled:
		// Explicit enable bypasses every later gate.
		d.Active = true
		d.Include = targeting.RuleSet{}
		d.Exclude = targeting.RuleSet{}
		d.Domains = []string{targeting.Wildcard}
		d.ConsentStates = []string{targeting.Wildcard}
		op.logger.Info("forced on by url override")
		l.emit(d.Name, EventOverrideEnabled, nil)
	case OverrideDisabled:
		d.Active = false
		op.logger.Info("forced off by url override")
		l.emit(d.Name, EventOverrideDisabled, nil)
	}

	if !d.Active {
		l.finishInactive(d, op)
		return
	}

	if d.wantsConsent() && !l.checkConsent(d.ConsentStates) {
		if err := d.fsm.Transition(finitestate.StatusConsentPending); err != nil {
			op.logger.Error("failed to park for consent", "error", err)
		}
		l.mu.Lock()
		l.queue = append(l.queue, consentEntry{desc: d, op: op})
		l.mu.Unlock()
		op.logger.Info("waiting for consent", "required", d.ConsentStates)
		l.emit(d.Name, EventConsentPending, nil)
		return
	}

	l.resume(ctx, d, op)
}

// resume runs the gate sequence from the domain check onward. Loads released
// from the consent queue re-enter here rather than loading unconditionally,
// since page context may have changed while they were parked.
func (l *Loader) resume(ctx context.Context, d *Descriptor, op *Operation) {
	if !targeting.MatchesDomain(l.host(), d.Domains) {
		l.finishIgnore(d, op, ReasonDomainMismatch)
		return
	}

	snapshot := l.dims.Snapshot()

	// Experiments mutate the descriptor before targeting so they can rewrite
	// which context values are required.
	if l.experiments != nil {
		l.experiments.Apply(ctx, d.Name, d, snapshot)
	}

	decision := l.engine.Evaluate(ctx, d.Include, d.Exclude, snapshot)
	if !decision.Matched {
		l.finishIgnore(d, op, decision.Reason)
		return
	}

	if d.URL == "" {
		l.finishIgnore(d, op, ReasonMissingURL)
		return
	}

	l.executeLoad(ctx, d, op)
}

// ProcessConsentQueue re-checks every parked load against the oracle.
// Granted entries re-run from the domain gate; denied entries are re-queued.
// Safe to call repeatedly and concurrently with new loads arriving: each
// entry is drained atomically and processed by exactly one caller.
func (l *Loader) ProcessConsentQueue(ctx context.Context) {
	l.mu.Lock()
	entries := l.queue
	l.queue = nil
	l.mu.Unlock()

	var denied []consentEntry
	for _, e := range entries {
		if e.desc.wantsConsent() && !l.checkConsent(e.desc.ConsentStates) {
			denied = append(denied, e)
			continue
		}
		e.op.logger.Info("consent granted, resuming")
		l.resume(ctx, e.desc, e.op)
	}

	if len(denied) > 0 {
		l.mu.Lock()
		l.queue = append(l.queue, denied...)
		l.mu.Unlock()
	}
}

func (l *Loader) checkConsent(required []string) bool {
	if l.oracle == nil {
		return true
	}
	return l.oracle.Check(required)
}

// executeLoad hands the descriptor to the executor and arms the timeout
// alarm. Exactly one of the three completion paths wins the requested state.
func (l *Loader) executeLoad(ctx context.Context, d *Descriptor, op *Operation) {
	if err := d.fsm.Transition(finitestate.StatusRequested); err != nil {
		op.logger.Error("failed to enter requested state", "error", err)
		op.resolve(Result{
			Name:        d.Name,
			Status:      d.fsm.GetState(),
			Err:         err,
			Performance: d.Performance(),
		})
		return
	}

	now := time.Now()
	d.updatePerf(func(p *Performance) {
		p.Requested = now
		p.Preload = now
	})
	runHook(op.logger, "preload", func() {
		if d.Hooks.Preload != nil {
			d.Hooks.Preload(d)
		}
	})

	op.logger.Debug("requesting script", "url", d.URL, "timeout", d.Timeout)

	timer := time.AfterFunc(d.Timeout, func() {
		l.completeTimeout(d, op)
	})

	l.executor.Execute(ctx, d, func(err error) {
		if err != nil {
			l.completeError(d, op, timer, err)
			return
		}
		l.completeLoaded(d, op, timer)
	})
}

func (l *Loader) completeLoaded(d *Descriptor, op *Operation, timer *time.Timer) {
	if err := d.fsm.TransitionIfCurrentState(finitestate.StatusRequested, finitestate.StatusLoaded); err != nil {
		op.logger.Debug("late executor success ignored", "state", d.fsm.GetState())
		return
	}
	timer.Stop()
	now := time.Now()
	var init time.Time
	d.updatePerf(func(p *Performance) {
		p.Received = now
		init = p.Init
	})
	runHook(op.logger, "onload", func() {
		if d.Hooks.OnLoad != nil {
			d.Hooks.OnLoad(d)
		}
	})
	op.logger.Info("script loaded", "latency", now.Sub(init))
	l.finalize(d, op, finitestate.StatusLoaded, EventLoad, "", nil, now)
}

func (l *Loader) completeError(d *Descriptor, op *Operation, timer *time.Timer, loadErr error) {
	if err := d.fsm.TransitionIfCurrentState(finitestate.StatusRequested, finitestate.StatusError); err != nil {
		op.logger.Debug("late executor failure ignored", "state", d.fsm.GetState())
		return
	}
	timer.Stop()
	now := time.Now()
	d.updatePerf(func(p *Performance) { p.Error = now })
	runHook(op.logger, "onerror", func() {
		if d.Hooks.OnError != nil {
			d.Hooks.OnError(d, loadErr)
		}
	})
	op.logger.Warn("script failed", "error", loadErr)
	l.finalize(d, op, finitestate.StatusError, EventError, "", loadErr, now)
}

func (l *Loader) completeTimeout(d *Descriptor, op *Operation) {
	if err := d.fsm.TransitionIfCurrentState(finitestate.StatusRequested, finitestate.StatusTimeout); err != nil {
		return
	}
	now := time.Now()
	d.updatePerf(func(p *Performance) { p.Timeout = now })
	runHook(op.logger, "ontimeout", func() {
		if d.Hooks.OnTimeout != nil {
			d.Hooks.OnTimeout(d)
		}
	})
	op.logger.Warn("script timed out", "timeout", d.Timeout)
	l.finalize(d, op, finitestate.StatusTimeout, EventTimeout, "", nil, now)
}

func (l *Loader) finishInactive(d *Descriptor, op *Operation) {
	if err := d.fsm.Transition(finitestate.StatusInactive); err != nil {
		op.logger.Error("failed to transition to inactive", "error", err)
	}
	op.logger.Debug("plugin inactive")
	l.finalize(d, op, finitestate.StatusInactive, EventInactive, "", nil, time.Now())
}

// finishIgnore marks the plugin ignored and deactivates it so it is not
// retried automatically on later loads.
func (l *Loader) finishIgnore(d *Descriptor, op *Operation, reason string) {
	if err := d.fsm.Transition(finitestate.StatusIgnore); err != nil {
		op.logger.Error("failed to transition to ignore", "error", err)
	}
	d.Active = false
	runHook(op.logger, "onignore", func() {
		if d.Hooks.OnIgnore != nil {
			d.Hooks.OnIgnore(d, reason)
		}
	})
	op.logger.Info("plugin ignored", "reason", reason)
	l.finalize(d, op, finitestate.StatusIgnore, EventIgnore, reason, nil, time.Now())
}

// finalize records the terminal performance, updates metrics, publishes the
// outcome event followed by complete, and settles the operation.
func (l *Loader) finalize(
	d *Descriptor,
	op *Operation,
	status, event, reason string,
	loadErr error,
	terminal time.Time,
) {
	var latency time.Duration
	d.updatePerf(func(p *Performance) {
		p.Latency = terminal.Sub(p.Init)
		p.Status = status
		latency = p.Latency
	})

	if l.metrics != nil {
		l.metrics.ObserveLoad(d.Name, status, latency)
	}

	extra := map[string]any{}
	if reason != "" {
		extra["reason"] = reason
	}
	if loadErr != nil {
		extra["error"] = loadErr.Error()
	}
	l.emit(d.Name, event, extra)
	l.emit(d.Name, EventComplete, nil)

	op.resolve(Result{
		Name:        d.Name,
		Status:      status,
		Reason:      reason,
		Err:         loadErr,
		Performance: d.Performance(),
	})
}

func (l *Loader) emit(name, event string, extra map[string]any) {
	if l.bus == nil {
		return
	}
	data := map[string]any{"name": name, "event": event}
	for k, v := range extra {
		data[k] = v
	}
	l.bus.Publish(events.Message{
		Topic: fmt.Sprintf("%s.%s.%s", l.eventPrefix, name, event),
		Data:  data,
	})
}

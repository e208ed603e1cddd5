// Package service runs the plugin gate under go-supervisor: it loads the
// manifest, assembles the loader stack, submits every declared plugin, and
// reacts to reload signals.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/atlanticdynamic/scriptgate/internal/config"
	"github.com/atlanticdynamic/scriptgate/internal/consent"
	"github.com/atlanticdynamic/scriptgate/internal/dimensions"
	"github.com/atlanticdynamic/scriptgate/internal/events"
	"github.com/atlanticdynamic/scriptgate/internal/executor"
	"github.com/atlanticdynamic/scriptgate/internal/experiments"
	"github.com/atlanticdynamic/scriptgate/internal/plugins"
	"github.com/atlanticdynamic/scriptgate/internal/service/finitestate"
	"github.com/atlanticdynamic/scriptgate/internal/targeting"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable   = (*Runner)(nil)
	_ supervisor.Reloadable = (*Runner)(nil)
	_ supervisor.Stateable  = (*Runner)(nil)
)

// Recorder mirrors the loader's metrics hooks plus the consent queue gauge.
type Recorder interface {
	plugins.Recorder
	SetConsentQueueDepth(n int)
}

// Runner boots the gate from a manifest file and keeps it running.
type Runner struct {
	configPath string
	lastConfig atomic.Pointer[config.Config]

	loader      *plugins.Loader
	experiments *experiments.Manager
	ledger      *consent.Ledger
	registry    *dimensions.Registry

	bus       *events.Bus
	executor  plugins.Executor
	metrics   Recorder
	overrides plugins.Overrides
	// testgroup pins the experiment bucket; nil draws one at random.
	testgroup *int

	logger *slog.Logger
	fsm    finitestate.Machine

	runCtx    context.Context
	runCancel context.CancelFunc
	parentCtx context.Context
}

// NewRunner creates a new Runner instance that loads its manifest from disk
func NewRunner(configPath string, opts ...Option) (*Runner, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path required")
	}

	runner := &Runner{
		configPath: configPath,
		logger:     slog.Default().WithGroup("service.Runner"),
		parentCtx:  context.Background(),
	}

	// Apply functional options
	for _, opt := range opts {
		opt(runner)
	}

	if runner.executor == nil {
		runner.executor = executor.NewHTTP(executor.WithLogger(runner.logger.WithGroup("executor")))
	}
	if runner.bus == nil {
		runner.bus = events.NewBus(events.WithLogger(runner.logger.WithGroup("events")))
	}

	// Initialize the finite state machine
	fsmLogger := runner.logger.WithGroup("fsm")
	machine, err := finitestate.New(fsmLogger.Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	runner.fsm = machine

	return runner, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "service.Runner"
}

// Run implements the supervisor.Runnable interface
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("Starting Runner")

	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	r.runCtx, r.runCancel = context.WithCancel(ctx)

	if err := r.boot(); err != nil {
		if stateErr := r.fsm.Transition(finitestate.StatusError); stateErr != nil {
			r.logger.Error("Failed to transition to error state", "error", stateErr)
		}
		return fmt.Errorf("failed to boot plugin gate: %w", err)
	}

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}

	// block here waiting for a context cancellation
	select {
	case <-r.parentCtx.Done():
		r.logger.Debug("Parent context canceled")
	case <-r.runCtx.Done():
		r.logger.Debug("Run context canceled")
	}

	r.logger.Info("Runner shutting down")

	if r.fsm.GetState() != finitestate.StatusStopping {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}

	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}

	r.lastConfig.Store(nil)
	return nil
}

// boot loads the manifest, wires the loader stack, and submits every plugin
func (r *Runner) boot() error {
	cfg, err := config.NewConfig(r.configPath)
	if err != nil {
		return err
	}

	r.registry = cfg.BuildDimensions(dimensions.WithLogger(r.logger.WithGroup("dimensions")))
	r.ledger = cfg.BuildConsent()

	expOpts := []experiments.Option{
		experiments.WithLogger(r.logger.WithGroup("experiments")),
	}
	if r.testgroup != nil {
		expOpts = append(expOpts, experiments.WithTestgroup(*r.testgroup))
	}
	r.experiments = experiments.NewManager(expOpts...)
	for _, exp := range cfg.ExperimentList(r.registry) {
		if !r.experiments.Register(exp) {
			r.logger.Warn("Skipped experiment with no id")
		}
	}

	engine := targeting.NewEngine(
		targeting.WithLogger(r.logger.WithGroup("targeting")),
		targeting.WithMatchTypes(cfg.MatchTypes()),
	)

	loaderOpts := []plugins.Option{
		plugins.WithExecutor(r.executor),
		plugins.WithEventBus(r.bus),
		plugins.WithConsentOracle(r.ledger),
		plugins.WithExperiments(r.experiments),
		plugins.WithDimensions(r.registry),
		plugins.WithTargeting(engine),
		plugins.WithHost(cfg.Host),
		plugins.WithOverrides(r.overrides),
		plugins.WithLogger(r.logger.WithGroup("loader")),
	}
	if cfg.EventPrefix != "" {
		loaderOpts = append(loaderOpts, plugins.WithEventPrefix(cfg.EventPrefix))
	}
	if r.metrics != nil {
		loaderOpts = append(loaderOpts, plugins.WithMetrics(r.metrics))
	}

	gate, err := plugins.New(loaderOpts...)
	if err != nil {
		return err
	}
	r.loader = gate
	r.lastConfig.Store(cfg)

	r.submitAll(cfg)
	return nil
}

// submitAll submits every declared plugin to the loader. Loads that park for
// consent or fail targeting resolve on their own; in-flight duplicates are
// logged and skipped.
func (r *Runner) submitAll(cfg *config.Config) {
	for _, d := range cfg.Descriptors(r.registry) {
		op, err := r.loader.Load(r.runCtx, d)
		switch {
		case errors.Is(err, plugins.ErrLoadInFlight):
			r.logger.Debug("Plugin load already in flight", "plugin", d.Name)
			continue
		case err != nil:
			r.logger.Error("Failed to submit plugin", "plugin", d.Name, "error", err)
			continue
		}

		go r.watch(op)
	}
	r.updateQueueDepth()
}

// watch logs the outcome of one load operation once it settles.
func (r *Runner) watch(op *plugins.Operation) {
	res, err := op.Wait(r.runCtx)
	if err != nil {
		return
	}
	r.updateQueueDepth()
	if res.Err != nil {
		r.logger.Warn("Plugin load finished",
			"plugin", res.Name, "status", res.Status, "error", res.Err)
		return
	}
	r.logger.Info("Plugin load finished",
		"plugin", res.Name, "status", res.Status, "latency", res.Performance.Latency)
}

// Stop implements the supervisor.Runnable interface
func (r *Runner) Stop() {
	r.logger.Debug("Stopping Runner")
	if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
		r.logger.Error("Failed to transition to stopping state", "error", err)
		// Continue with shutdown despite the state transition error
	}
	r.runCancel()
}

// Reload implements the supervisor.Reloadable interface. The manifest is
// re-read from disk, settled plugins are re-submitted so they re-run the
// full gate with fresh config, and the consent queue is re-processed.
func (r *Runner) Reload() {
	r.logger.Debug("Starting Reload...")

	if err := r.fsm.Transition(finitestate.StatusReloading); err != nil {
		r.logger.Error("Failed to transition to reloading state", "error", err)
		return
	}
	defer func() {
		if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
			r.logger.Error("Failed to transition back to running state", "error", err)
		}
	}()

	cfg, err := config.NewConfig(r.configPath)
	if err != nil {
		r.logger.Error("Failed to reload config", "error", err)
		return
	}

	r.ledger.Grant(cfg.Consent.Granted...)
	r.lastConfig.Store(cfg)
	r.submitAll(cfg)
	r.loader.ProcessConsentQueue(r.runCtx)
	r.updateQueueDepth()
	r.logger.Debug("Reload completed")
}

// Grant records consent states and releases any loads waiting on them.
func (r *Runner) Grant(ctx context.Context, states ...string) {
	r.ledger.Grant(states...)
	r.loader.ProcessConsentQueue(ctx)
	r.updateQueueDepth()
}

// Revoke removes consent states. Already loaded plugins are unaffected.
func (r *Runner) Revoke(states ...string) {
	r.ledger.Revoke(states...)
}

// Loader exposes the plugin loader for embedding callers.
func (r *Runner) Loader() *plugins.Loader {
	return r.loader
}

// Experiments exposes the experiment manager.
func (r *Runner) Experiments() *experiments.Manager {
	return r.experiments
}

// Events exposes the lifecycle event bus.
func (r *Runner) Events() *events.Bus {
	return r.bus
}

// getConfig returns the last manifest successfully loaded, or nil if none
func (r *Runner) getConfig() *config.Config {
	return r.lastConfig.Load()
}

func (r *Runner) updateQueueDepth() {
	if r.metrics == nil || r.loader == nil {
		return
	}
	r.metrics.SetConsentQueueDepth(len(r.loader.QueuedConsent()))
}

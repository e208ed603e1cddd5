package service

import (
	"context"
	"log/slog"

	"github.com/atlanticdynamic/scriptgate/internal/events"
	"github.com/atlanticdynamic/scriptgate/internal/plugins"
)

type Option func(*Runner)

// WithLogger sets a custom logger for the Runner instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Runner instance.
func WithLogHandler(handler slog.Handler) Option {
	return func(r *Runner) {
		r.logger = slog.New(handler)
	}
}

// WithContext sets a custom parent context for the Runner instance.
func WithContext(ctx context.Context) Option {
	return func(r *Runner) {
		r.parentCtx = ctx
	}
}

// WithEventBus sets the event bus plugins publish lifecycle events to.
func WithEventBus(bus *events.Bus) Option {
	return func(r *Runner) {
		r.bus = bus
	}
}

// WithExecutor replaces the default HTTP script executor.
func WithExecutor(e plugins.Executor) Option {
	return func(r *Runner) {
		r.executor = e
	}
}

// WithMetrics wires a metrics recorder into the loader.
func WithMetrics(rec Recorder) Option {
	return func(r *Runner) {
		r.metrics = rec
	}
}

// WithOverrides sets the page URL override lists forwarded to the loader.
func WithOverrides(o plugins.Overrides) Option {
	return func(r *Runner) {
		r.overrides = o
	}
}

// WithTestgroup pins the experiment bucket instead of drawing one at random.
func WithTestgroup(tg int) Option {
	return func(r *Runner) {
		r.testgroup = &tg
	}
}

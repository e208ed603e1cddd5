package plugins

import (
	"context"
	"time"

	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// Executor attaches the script resource described by a descriptor and
// reports completion asynchronously. Implementations must call done exactly
// once, with nil on success or the load error on failure; they own the
// lifetime of whatever resource they inject. The timeout alarm is owned by
// the loader, never the executor.
type Executor interface {
	Execute(ctx context.Context, d *Descriptor, done func(error))
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, d *Descriptor, done func(error))

func (f ExecutorFunc) Execute(ctx context.Context, d *Descriptor, done func(error)) {
	f(ctx, d, done)
}

// ExperimentApplier mutates a descriptor with any experiments the current
// session is bucketed into. It runs after the consent and domain gates and
// before targeting evaluation, so an experiment may rewrite the descriptor's
// include/exclude rules, URL, or activity.
type ExperimentApplier interface {
	Apply(ctx context.Context, pluginName string, d *Descriptor, snapshot targeting.Snapshot)
}

// Recorder receives one observation per terminal load outcome.
type Recorder interface {
	ObserveLoad(plugin, status string, latency time.Duration)
}

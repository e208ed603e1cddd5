package plugins

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-loglater"
)

// Result is the settled outcome of one load operation.
type Result struct {
	Name        string
	Status      string
	Reason      string
	Err         error
	Performance Performance
}

// Operation is the completion handle for one Load call. It settles exactly
// once; a load parked in the consent queue stays unresolved until consent is
// granted and the queue is re-processed. Every operation carries its own log
// collector so the full gate trail can be replayed after completion.
type Operation struct {
	// ID uniquely identifies this load attempt.
	ID uuid.UUID

	// Name is the plugin the operation belongs to.
	Name string

	logs   *loglater.LogCollector
	logger *slog.Logger

	done   chan struct{}
	once   sync.Once
	result Result
}

func newOperation(name string, handler slog.Handler) *Operation {
	opID := uuid.Must(uuid.NewV6())
	logs := loglater.NewLogCollector(handler)
	return &Operation{
		ID:   opID,
		Name: name,
		logs: logs,
		logger: slog.New(logs).With(
			"operation", opID,
			"plugin", name,
		),
		done: make(chan struct{}),
	}
}

// Done is closed when the operation settles.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Resolved reports whether the operation has settled.
func (o *Operation) Resolved() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Result returns the settled result. The boolean is false while the
// operation is still pending.
func (o *Operation) Result() (Result, bool) {
	if !o.Resolved() {
		return Result{}, false
	}
	return o.result, true
}

// Wait blocks until the operation settles or the context is canceled.
func (o *Operation) Wait(ctx context.Context) (Result, error) {
	select {
	case <-o.done:
		return o.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// PlaybackLogs replays the operation's captured log records to a handler.
func (o *Operation) PlaybackLogs(handler slog.Handler) error {
	return o.logs.PlayLogs(handler)
}

// resolve settles the operation. First caller wins; later calls are no-ops.
// The loader's state machine guard means resolve is only ever reached once
// per load, but the once keeps the handle safe regardless.
func (o *Operation) resolve(res Result) {
	o.once.Do(func() {
		o.result = res
		close(o.done)
	})
}

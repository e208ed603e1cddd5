// Package finitestate provides the state machine that tracks the gate
// runner's lifecycle under the supervisor.
package finitestate

import (
	"context"
	"log/slog"

	fsm "github.com/robbyt/go-fsm/v2"
)

// Runner lifecycle states.
const (
	StatusNew       = "New"
	StatusBooting   = "Booting"
	StatusRunning   = "Running"
	StatusReloading = "Reloading"
	StatusStopping  = "Stopping"
	StatusStopped   = "Stopped"
	StatusError     = "Error"
)

// Transitions is the standard runner lifecycle transition set.
var Transitions = map[string][]string{
	StatusNew:       {StatusBooting, StatusError},
	StatusBooting:   {StatusRunning, StatusError},
	StatusRunning:   {StatusReloading, StatusStopping, StatusError},
	StatusReloading: {StatusRunning, StatusError},
	StatusStopping:  {StatusStopped, StatusError},
	StatusStopped:   {StatusNew, StatusBooting},
	StatusError:     {StatusNew, StatusStopping},
}

// Machine defines the interface for the finite state machine that tracks
// the runner's lifecycle states. This abstraction allows for different FSM
// implementations and simplifies testing.
type Machine interface {
	// Transition attempts to transition the state machine to the specified state.
	Transition(state string) error

	// TransitionBool attempts to transition the state machine to the specified state.
	TransitionBool(state string) bool

	// TransitionIfCurrentState attempts to transition the state machine to the
	// specified state, only if the current state matches.
	TransitionIfCurrentState(currentState, newState string) error

	// SetState sets the state of the state machine to the specified state.
	SetState(state string) error

	// GetState returns the current state of the state machine.
	GetState() string

	// GetStateChan returns a channel that emits the state machine's state
	// whenever it changes. The channel is closed when the context is canceled.
	GetStateChan(ctx context.Context) <-chan string
}

// machine adapts the fsm channel-registration API to the read-only channel
// shape supervisor.Stateable expects.
type machine struct {
	*fsm.Machine
}

func (m *machine) GetStateChan(ctx context.Context) <-chan string {
	ch := make(chan string, 16)
	if err := m.Machine.GetStateChan(ctx, ch); err != nil {
		close(ch)
	}
	return ch
}

// New creates a new finite state machine with the specified logger using the
// standard runner transitions.
func New(handler slog.Handler) (Machine, error) {
	m, err := fsm.NewSimple(StatusNew, Transitions, fsm.WithLogHandler(handler))
	if err != nil {
		return nil, err
	}
	return &machine{Machine: m}, nil
}

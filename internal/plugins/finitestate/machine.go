// Package finitestate provides the per-plugin lifecycle state machine.
// Each plugin descriptor owns one machine for its whole session; terminal
// states transition back to init when the caller issues a fresh load.
package finitestate

import (
	"log/slog"

	fsm "github.com/robbyt/go-fsm/v2"
)

// Lifecycle states for one plugin load.
const (
	// StatusInit is the state of a freshly registered or re-submitted plugin.
	StatusInit = "init"

	// StatusConsentPending parks a load waiting for the consent oracle. It is
	// the only non-terminal state a load can remain in indefinitely.
	StatusConsentPending = "consent-pending"

	// StatusRequested means the script executor has been invoked and the
	// timeout alarm is armed.
	StatusRequested = "requested"

	// Terminal outcomes.
	StatusLoaded   = "loaded"
	StatusError    = "error"
	StatusTimeout  = "timeout"
	StatusInactive = "inactive"
	StatusIgnore   = "ignore"
)

// LoadTransitions defines the valid lifecycle transitions. The requested
// state fans out to exactly one of loaded/error/timeout; the guard for that
// race is TransitionIfCurrentState, first writer wins. Terminal states only
// permit a reset back to init for a fresh load of the same plugin.
var LoadTransitions = map[string][]string{
	StatusInit: {
		StatusConsentPending,
		StatusRequested,
		StatusInactive,
		StatusIgnore,
	},
	StatusConsentPending: {
		StatusRequested,
		StatusInactive,
		StatusIgnore,
	},
	StatusRequested: {
		StatusLoaded,
		StatusError,
		StatusTimeout,
	},
	StatusLoaded:   {StatusInit},
	StatusError:    {StatusInit},
	StatusTimeout:  {StatusInit},
	StatusInactive: {StatusInit},
	StatusIgnore:   {StatusInit},
}

// Terminal reports whether a state is a final load outcome.
func Terminal(state string) bool {
	switch state {
	case StatusLoaded, StatusError, StatusTimeout, StatusInactive, StatusIgnore:
		return true
	}
	return false
}

// Machine is the interface the loader uses to drive a plugin lifecycle.
// This abstraction allows for different FSM implementations and simplifies
// testing.
type Machine interface {
	// Transition attempts to transition the state machine to the specified state.
	Transition(state string) error

	// TransitionBool attempts to transition the state machine to the specified state.
	TransitionBool(state string) bool

	// TransitionIfCurrentState attempts to transition the state machine to the
	// specified state, only if the current state matches. This is the
	// single-resolution guard for the loaded/error/timeout race.
	TransitionIfCurrentState(currentState, newState string) error

	// SetState sets the state of the state machine to the specified state.
	SetState(state string) error

	// GetState returns the current state of the state machine.
	GetState() string
}

// New creates a lifecycle state machine starting in init.
func New(handler slog.Handler) (Machine, error) {
	machine, err := fsm.NewSimple(StatusInit, LoadTransitions, fsm.WithLogHandler(handler))
	if err != nil {
		return nil, err
	}
	return machine, nil
}

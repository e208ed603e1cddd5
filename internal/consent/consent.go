// Package consent defines the oracle the loader consults before running
// plugins that require user permission.
package consent

import "sync"

// Oracle answers whether every required consent state is currently granted.
// The loader only calls it when a plugin's required states are non-empty and
// not wildcarded.
type Oracle interface {
	Check(required []string) bool
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(required []string) bool

func (f OracleFunc) Check(required []string) bool { return f(required) }

// Ledger is a mutable in-memory Oracle. Grants can arrive at any time; the
// caller is expected to re-process the loader's consent queue afterwards.
type Ledger struct {
	mu      sync.RWMutex
	granted map[string]bool
}

// NewLedger creates a Ledger with the given states pre-granted.
func NewLedger(granted ...string) *Ledger {
	l := &Ledger{granted: make(map[string]bool, len(granted))}
	for _, state := range granted {
		l.granted[state] = true
	}
	return l
}

// Grant marks consent states as given.
func (l *Ledger) Grant(states ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, state := range states {
		l.granted[state] = true
	}
}

// Revoke withdraws consent states.
func (l *Ledger) Revoke(states ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, state := range states {
		delete(l.granted, state)
	}
}

// Check reports whether every required state is granted.
func (l *Ledger) Check(required []string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, state := range required {
		if !l.granted[state] {
			return false
		}
	}
	return true
}

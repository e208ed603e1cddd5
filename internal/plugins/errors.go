package plugins

import "errors"

var (
	ErrNoExecutor    = errors.New("no script executor configured")
	ErrNilDescriptor = errors.New("nil descriptor")
	ErrMissingName   = errors.New("missing plugin name")
	ErrLoadInFlight  = errors.New("load already in flight")
)

// Ignore reasons produced by the loader's own gates. Targeting mismatches
// carry the engine's reason string instead.
const (
	ReasonDomainMismatch = "Domain mismatch"
	ReasonMissingURL     = "Missing url"
)

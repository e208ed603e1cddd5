package config

import (
	"context"
	"fmt"
	"time"

	"github.com/atlanticdynamic/scriptgate/internal/consent"
	"github.com/atlanticdynamic/scriptgate/internal/dimensions"
	"github.com/atlanticdynamic/scriptgate/internal/experiments"
	"github.com/atlanticdynamic/scriptgate/internal/plugins"
	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// BuildDimensions creates a dimension registry seeded with the static values
// declared in the manifest.
func (c *Config) BuildDimensions(opts ...dimensions.Option) *dimensions.Registry {
	registry := dimensions.NewRegistry(opts...)
	for _, name := range sortedKeys(c.Dimensions.Values) {
		registry.RegisterValue(name, c.Dimensions.Values[name])
	}
	return registry
}

// BuildConsent creates a consent ledger seeded with the states granted in the
// manifest.
func (c *Config) BuildConsent() *consent.Ledger {
	return consent.NewLedger(c.Consent.Granted...)
}

// MatchTypes converts the configured per-dimension match types.
func (c *Config) MatchTypes() targeting.MatchTypes {
	if len(c.Dimensions.MatchTypes) == 0 {
		return nil
	}
	out := make(targeting.MatchTypes, len(c.Dimensions.MatchTypes))
	for name, mt := range c.Dimensions.MatchTypes {
		out[name] = targeting.MatchType(mt)
	}
	return out
}

// Descriptors converts every plugin declaration into a runtime descriptor.
// The registry provides page context to scripted special predicates.
func (c *Config) Descriptors(registry *dimensions.Registry) []*plugins.Descriptor {
	out := make([]*plugins.Descriptor, 0, len(c.Plugins))
	for i := range c.Plugins {
		out = append(out, c.Plugins[i].Descriptor(registry))
	}
	return out
}

// ExperimentList converts every experiment declaration into a runtime
// experiment.
func (c *Config) ExperimentList(registry *dimensions.Registry) []experiments.Experiment {
	out := make([]experiments.Experiment, 0, len(c.Experiments))
	for i := range c.Experiments {
		out = append(out, c.Experiments[i].toRuntime(registry))
	}
	return out
}

// specialPredicate adapts a compiled Risor script into a targeting predicate.
// The script sees the current dimension snapshot as ctx["dimensions"] and
// must produce a boolean.
func specialPredicate(script *RisorScript, registry *dimensions.Registry) targeting.Predicate {
	return func(ctx context.Context) (bool, error) {
		payload := map[string]any{
			"dimensions": snapshotMap(registry),
		}

		result, err := script.Eval(ctx, payload)
		if err != nil {
			return false, err
		}

		switch v := result.(type) {
		case bool:
			return v, nil
		case nil:
			return false, nil
		default:
			return false, fmt.Errorf("special predicate returned %T, expected bool", result)
		}
	}
}

// snapshotMap renders the registry's current snapshot as a plain map for
// script consumption.
func snapshotMap(registry *dimensions.Registry) map[string]any {
	out := map[string]any{}
	if registry == nil {
		return out
	}
	for _, cv := range registry.Snapshot() {
		out[cv.Name] = cv.Value
	}
	return out
}

// setAttribute replaces an existing attribute by key or appends a new one.
func setAttribute(d *plugins.Descriptor, key, value string) {
	for i := range d.Attributes {
		if d.Attributes[i].Key == key {
			d.Attributes[i].Value = value
			return
		}
	}
	d.Attributes = append(d.Attributes, plugins.Attribute{Key: key, Value: value})
}

// mergeOverlayValue applies one script-produced override onto the descriptor.
func mergeOverlayValue(d *plugins.Descriptor, key string, value any) error {
	switch key {
	case "url":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("experiment override url must be a string, got %T", value)
		}
		d.URL = s
	case "async":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("experiment override async must be a bool, got %T", value)
		}
		d.Async = b
	case "active":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("experiment override active must be a bool, got %T", value)
		}
		d.Active = b
	case "location":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("experiment override location must be a string, got %T", value)
		}
		d.Location = s
	case "timeout":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("experiment override timeout must be a duration string, got %T", value)
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("experiment override timeout: %w", err)
		}
		d.Timeout = parsed
	case "attributes":
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("experiment override attributes must be a map, got %T", value)
		}
		for _, k := range sortedKeys(m) {
			s, ok := m[k].(string)
			if !ok {
				return fmt.Errorf("experiment override attribute %q must be a string, got %T", k, m[k])
			}
			setAttribute(d, k, s)
		}
	default:
		return fmt.Errorf("unknown experiment override field %q", key)
	}
	return nil
}

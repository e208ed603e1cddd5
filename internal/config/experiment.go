package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlanticdynamic/scriptgate/internal/dimensions"
	"github.com/atlanticdynamic/scriptgate/internal/experiments"
	"github.com/atlanticdynamic/scriptgate/internal/plugins"
)

// Experiment declares an A/B test. When the session's testgroup falls inside
// TestRange and the context rules pass, the variation is applied to the named
// plugin before its targeting rules run.
type Experiment struct {
	ID        string  `toml:"id"`
	Active    bool    `toml:"active"`
	Plugin    string  `toml:"plugin"`
	TestRange []int   `toml:"test_range"`
	Include   RuleSet `toml:"include"`
	Exclude   RuleSet `toml:"exclude"`

	// Set holds static field overrides applied to the plugin descriptor.
	Set Overlay `toml:"set" env_interpolation:"yes"`
	// Apply optionally computes overrides with a Risor script. The script
	// sees the current descriptor as ctx["plugin"] and must return a map of
	// override fields.
	Apply *RisorScript `toml:"apply"`
}

// Overlay is a static set of descriptor overrides for an experiment
// variation. Pointer fields distinguish "not set" from a zero value.
type Overlay struct {
	URL        string            `toml:"url" env_interpolation:"yes"`
	Async      *bool             `toml:"async"`
	Active     *bool             `toml:"active"`
	Location   string            `toml:"location"`
	Timeout    Duration          `toml:"timeout"`
	Attributes map[string]string `toml:"attributes"`
}

// IsZero reports whether the overlay carries no overrides.
func (o Overlay) IsZero() bool {
	return o.URL == "" && o.Async == nil && o.Active == nil &&
		o.Location == "" && o.Timeout == 0 && len(o.Attributes) == 0
}

// apply copies the overlay's set fields onto the descriptor.
func (o Overlay) apply(d *plugins.Descriptor) {
	if d == nil {
		return
	}
	if o.URL != "" {
		d.URL = o.URL
	}
	if o.Async != nil {
		d.Async = *o.Async
	}
	if o.Active != nil {
		d.Active = *o.Active
	}
	if o.Location != "" {
		d.Location = o.Location
	}
	if o.Timeout != 0 {
		d.Timeout = o.Timeout.AsDuration()
	}
	for _, key := range sortedKeys(o.Attributes) {
		setAttribute(d, key, o.Attributes[key])
	}
}

// toRuntime converts the experiment declaration into a runtime experiment.
func (e *Experiment) toRuntime(registry *dimensions.Registry) experiments.Experiment {
	out := experiments.Experiment{
		ID:      e.ID,
		Active:  e.Active,
		Plugin:  e.Plugin,
		Include: e.Include.toRuntime(registry),
		Exclude: e.Exclude.toRuntime(registry),
	}

	// A declaration without a test range admits every bucket.
	out.TestRange = experiments.Range{Min: 0, Max: experiments.Buckets - 1}
	if len(e.TestRange) == 2 {
		out.TestRange = experiments.Range{Min: e.TestRange[0], Max: e.TestRange[1]}
	}

	overlay := e.Set
	script := e.Apply
	out.Apply = func(d *plugins.Descriptor) error {
		overlay.apply(d)
		if script == nil {
			return nil
		}
		return applyScript(script, d)
	}
	return out
}

// applyScript runs the experiment's Risor script and merges the returned
// override map into the descriptor.
func applyScript(script *RisorScript, d *plugins.Descriptor) error {
	payload := map[string]any{}
	if d != nil {
		payload["plugin"] = map[string]any{
			"name":     d.Name,
			"url":      d.URL,
			"async":    d.Async,
			"active":   d.Active,
			"location": d.Location,
		}
	}

	result, err := script.Eval(context.Background(), payload)
	if err != nil {
		return err
	}

	switch overrides := result.(type) {
	case nil:
		return nil
	case map[string]any:
		if d == nil {
			return nil
		}
		var errs []error
		for _, key := range sortedKeys(overrides) {
			if err := mergeOverlayValue(d, key, overrides[key]); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("experiment script returned %T, expected a map", result)
	}
}

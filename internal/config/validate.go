package config

import (
	"errors"
	"fmt"

	"github.com/atlanticdynamic/scriptgate/internal/config/errz"
	"github.com/atlanticdynamic/scriptgate/internal/config/validation"
	"github.com/atlanticdynamic/scriptgate/internal/experiments"
	"github.com/atlanticdynamic/scriptgate/internal/interpolation"
	"github.com/atlanticdynamic/scriptgate/internal/plugins"
	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// Validate checks the manifest for consistency and compiles every embedded
// script. A config that passes Validate converts to runtime types without
// further errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != Version {
		errs = append(errs, fmt.Errorf("%w: %q", errz.ErrUnsupportedConfigVer, c.Version))
	}

	if err := interpolation.InterpolateStruct(c); err != nil {
		errs = append(errs, fmt.Errorf("interpolation failed: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, c.validateDimensions()...)
	errs = append(errs, c.validatePlugins()...)
	errs = append(errs, c.validateExperiments()...)

	return errors.Join(errs...)
}

func (c *Config) validateDimensions() []error {
	var errs []error
	for _, name := range sortedKeys(c.Dimensions.MatchTypes) {
		switch targeting.MatchType(c.Dimensions.MatchTypes[name]) {
		case targeting.MatchExact, targeting.MatchStartsWith, targeting.MatchIncludes:
		default:
			errs = append(errs, fmt.Errorf(
				"%w: dimension %q uses %q",
				errz.ErrInvalidMatchType, name, c.Dimensions.MatchTypes[name],
			))
		}
	}
	return errs
}

func (c *Config) validatePlugins() []error {
	var errs []error
	seen := make(map[string]bool, len(c.Plugins))

	for i := range c.Plugins {
		p := &c.Plugins[i]

		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%w: plugin at index %d", errz.ErrEmptyName, i))
			continue
		}
		if err := validation.ValidateID(p.Name, "plugin name"); err != nil {
			errs = append(errs, err)
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("%w: plugin %q", errz.ErrDuplicateName, p.Name))
		}
		seen[p.Name] = true

		switch p.Location {
		case "", plugins.LocationHead, plugins.LocationBody:
		default:
			errs = append(errs, fmt.Errorf(
				"%w: plugin %q uses %q",
				errz.ErrInvalidLocation, p.Name, p.Location,
			))
		}

		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("plugin %q: %w", p.Name, errz.ErrNegativeTimeout))
		}

		errs = append(errs, validateRuleSet(p.Include, fmt.Sprintf("plugin %q include", p.Name))...)
		errs = append(errs, validateRuleSet(p.Exclude, fmt.Sprintf("plugin %q exclude", p.Name))...)
	}
	return errs
}

func (c *Config) validateExperiments() []error {
	var errs []error
	seen := make(map[string]bool, len(c.Experiments))
	pluginNames := make(map[string]bool, len(c.Plugins))
	for i := range c.Plugins {
		pluginNames[c.Plugins[i].Name] = true
	}

	for i := range c.Experiments {
		e := &c.Experiments[i]

		if e.ID == "" {
			errs = append(errs, fmt.Errorf("%w: experiment at index %d", errz.ErrEmptyName, i))
			continue
		}
		if err := validation.ValidateID(e.ID, "experiment id"); err != nil {
			errs = append(errs, err)
		}
		if seen[e.ID] {
			errs = append(errs, fmt.Errorf("%w: experiment %q", errz.ErrDuplicateName, e.ID))
		}
		seen[e.ID] = true

		if err := validateTestRange(e.TestRange); err != nil {
			errs = append(errs, fmt.Errorf("experiment %q: %w", e.ID, err))
		}

		if e.Plugin != "" && !pluginNames[e.Plugin] {
			errs = append(errs, fmt.Errorf(
				"%w: experiment %q targets unknown plugin %q",
				errz.ErrInvalidReference, e.ID, e.Plugin,
			))
		}

		errs = append(errs, validateRuleSet(e.Include, fmt.Sprintf("experiment %q include", e.ID))...)
		errs = append(errs, validateRuleSet(e.Exclude, fmt.Sprintf("experiment %q exclude", e.ID))...)

		if e.Apply != nil {
			if err := e.Apply.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("experiment %q apply script: %w", e.ID, err))
			}
		}
	}
	return errs
}

// validateTestRange checks the [min, max] bucket range. Both bounds are
// inclusive and must fall inside the bucket space.
func validateTestRange(r []int) error {
	switch len(r) {
	case 0:
		return nil
	case 2:
	default:
		return fmt.Errorf("%w: expected [min, max], got %d values", errz.ErrInvalidTestRange, len(r))
	}

	min, max := r[0], r[1]
	if min < 0 || max >= experiments.Buckets || min > max {
		return fmt.Errorf(
			"%w: [%d, %d] outside 0..%d",
			errz.ErrInvalidTestRange, min, max, experiments.Buckets-1,
		)
	}
	return nil
}

func validateRuleSet(rs RuleSet, label string) []error {
	var errs []error
	if rs.Special != nil {
		if err := rs.Special.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s special: %w", label, err))
		}
	}
	return errs
}

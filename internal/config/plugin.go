package config

import (
	"maps"
	"slices"

	"github.com/atlanticdynamic/scriptgate/internal/dimensions"
	"github.com/atlanticdynamic/scriptgate/internal/plugins"
	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// Plugin declares one third-party script and the conditions under which it
// may be added to the page.
type Plugin struct {
	Name          string            `toml:"name" env_interpolation:"no"`
	ID            string            `toml:"id"`
	URL           string            `toml:"url" env_interpolation:"yes"`
	Type          string            `toml:"type"`
	Location      string            `toml:"location"`
	Async         bool              `toml:"async"`
	Active        bool              `toml:"active"`
	Timeout       Duration          `toml:"timeout"`
	Attributes    map[string]string `toml:"attributes" env_interpolation:"yes"`
	Domains       []string          `toml:"domains"`
	ConsentStates []string          `toml:"consent"`
	Include       RuleSet           `toml:"include"`
	Exclude       RuleSet           `toml:"exclude"`
}

// RuleSet declares dimension matching rules plus an optional scripted special
// predicate that overrides the dimension rules when present.
type RuleSet struct {
	Dimensions map[string][]string `toml:"dimensions"`
	Special    *RisorScript        `toml:"special"`
}

// IsZero reports whether the rule set has no rules at all.
func (rs RuleSet) IsZero() bool {
	return len(rs.Dimensions) == 0 && rs.Special == nil
}

// toRuntime converts the configured rule set into a targeting rule set. The
// registry provides the page context snapshot to scripted predicates.
func (rs RuleSet) toRuntime(registry *dimensions.Registry) targeting.RuleSet {
	out := targeting.RuleSet{Dimensions: rs.Dimensions}
	if rs.Special != nil {
		out.Special = specialPredicate(rs.Special, registry)
	}
	return out
}

// Descriptor converts the plugin declaration into a runtime descriptor.
func (p *Plugin) Descriptor(registry *dimensions.Registry) *plugins.Descriptor {
	var attrs []plugins.Attribute
	for _, key := range slices.Sorted(maps.Keys(p.Attributes)) {
		attrs = append(attrs, plugins.Attribute{Key: key, Value: p.Attributes[key]})
	}

	d := &plugins.Descriptor{
		Name:          p.Name,
		ID:            p.ID,
		URL:           p.URL,
		Type:          p.Type,
		Location:      p.Location,
		Async:         p.Async,
		Active:        p.Active,
		Timeout:       p.Timeout.AsDuration(),
		Attributes:    attrs,
		Domains:       p.Domains,
		ConsentStates: p.ConsentStates,
		Include:       p.Include.toRuntime(registry),
		Exclude:       p.Exclude.toRuntime(registry),
	}
	return d
}

package config

import (
	"fmt"
	"strings"

	"github.com/atlanticdynamic/scriptgate/internal/fancy"
)

// String returns a pretty-printed tree representation of the config
func (c *Config) String() string {
	return ConfigTree(c)
}

// ConfigTree converts a Config struct into a rendered tree string
func ConfigTree(cfg *Config) string {
	// Set up the root node with the config version
	t := fancy.Tree()
	t.Root(fancy.RootStyle.Render(fmt.Sprintf("Scriptgate Config (%s)", cfg.Version)))

	if cfg.Host != "" {
		t.Child(fmt.Sprintf("Host: %s", cfg.Host))
	}

	// Add logging section
	loggingTree := t.Child("Logging")
	loggingTree.Child(fmt.Sprintf("Format: %s", cfg.Logging.Format))
	loggingTree.Child(fmt.Sprintf("Level: %s", cfg.Logging.Level))

	// Add dimensions section
	if len(cfg.Dimensions.Values) > 0 || len(cfg.Dimensions.MatchTypes) > 0 {
		dimsTree := t.Child("Dimensions")
		for _, name := range sortedKeys(cfg.Dimensions.Values) {
			label := fmt.Sprintf("%s: %s", fancy.DimensionText(name), cfg.Dimensions.Values[name])
			if mt, ok := cfg.Dimensions.MatchTypes[name]; ok {
				label += fancy.InfoStyle.Render(fmt.Sprintf(" (%s)", mt))
			}
			dimsTree.Child(label)
		}
	}

	// Add plugins section
	pluginsTree := t.Child(fmt.Sprintf("Plugins %s", fancy.CountText(fmt.Sprintf("(%d)", len(cfg.Plugins)))))
	for i := range cfg.Plugins {
		pluginsTree.Child(cfg.Plugins[i].ToTree().Tree())
	}

	// Add experiments section
	if len(cfg.Experiments) > 0 {
		expTree := t.Child(fmt.Sprintf("Experiments %s", fancy.CountText(fmt.Sprintf("(%d)", len(cfg.Experiments)))))
		for i := range cfg.Experiments {
			expTree.Child(cfg.Experiments[i].ToTree().Tree())
		}
	}

	// Render the tree to string
	return t.String()
}

// ToTree returns a tree visualization of the plugin declaration
func (p *Plugin) ToTree() *fancy.ComponentTree {
	tree := fancy.PluginTree(p.Name)

	tree.AddChild(fmt.Sprintf("URL: %s", fancy.TruncateString(p.URL, 60)))
	if p.Location != "" {
		tree.AddChild(fmt.Sprintf("Location: %s", p.Location))
	}
	tree.AddChild(fmt.Sprintf("Active: %t, Async: %t", p.Active, p.Async))
	if p.Timeout != 0 {
		tree.AddChild(fmt.Sprintf("Timeout: %s", p.Timeout))
	}
	if len(p.Domains) > 0 {
		tree.AddChild(fmt.Sprintf("Domains: %s", strings.Join(p.Domains, ", ")))
	}
	if len(p.ConsentStates) > 0 {
		tree.AddChild(fmt.Sprintf("Consent: %s", strings.Join(p.ConsentStates, ", ")))
	}
	if !p.Include.IsZero() {
		tree.AddChild(ruleSetLabel("Include", p.Include))
	}
	if !p.Exclude.IsZero() {
		tree.AddChild(ruleSetLabel("Exclude", p.Exclude))
	}

	return tree
}

// ToTree returns a tree visualization of the experiment declaration
func (e *Experiment) ToTree() *fancy.ComponentTree {
	tree := fancy.ExperimentTree(e.ID)

	if e.Plugin != "" {
		tree.AddChild(fmt.Sprintf("Plugin: %s", fancy.PluginText(e.Plugin)))
	}
	tree.AddChild(fmt.Sprintf("Active: %t", e.Active))
	if len(e.TestRange) == 2 {
		tree.AddChild(fmt.Sprintf("Test range: [%d, %d]", e.TestRange[0], e.TestRange[1]))
	}
	if !e.Include.IsZero() {
		tree.AddChild(ruleSetLabel("Include", e.Include))
	}
	if !e.Exclude.IsZero() {
		tree.AddChild(ruleSetLabel("Exclude", e.Exclude))
	}
	if !e.Set.IsZero() {
		tree.AddChild("Overrides: static")
	}
	if e.Apply != nil {
		tree.AddChild(fmt.Sprintf("Overrides: %s", fancy.ScriptText(e.Apply.String())))
	}

	return tree
}

func ruleSetLabel(kind string, rs RuleSet) string {
	var parts []string
	for _, name := range sortedKeys(rs.Dimensions) {
		parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(rs.Dimensions[name], "|")))
	}
	if rs.Special != nil {
		parts = append(parts, fancy.ScriptText(rs.Special.String()))
	}
	return fmt.Sprintf("%s: %s", kind, strings.Join(parts, ", "))
}

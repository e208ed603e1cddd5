package plugins

import (
	"net/url"
	"strings"

	"github.com/atlanticdynamic/scriptgate/internal/targeting"
)

// OverrideDecision is the per-plugin verdict of the URL override source.
type OverrideDecision int

const (
	// OverrideNone leaves the plugin's own gates in charge.
	OverrideNone OverrideDecision = iota
	// OverrideEnabled forces the plugin on, bypassing all subsequent gates.
	OverrideEnabled
	// OverrideDisabled forces the plugin off.
	OverrideDisabled
)

// Overrides holds the enable/disable lists parsed from the page query
// string. A disable list containing the wildcard means "disable everything
// except names present in enable".
type Overrides struct {
	enable     map[string]bool
	disable    map[string]bool
	disableAll bool
}

// ParseOverrides extracts the enable/disable lists from a raw query string.
// Both keys accept comma-separated plugin names and may repeat.
func ParseOverrides(rawQuery string) (Overrides, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Overrides{}, err
	}

	o := Overrides{
		enable:  splitList(values["enable"]),
		disable: splitList(values["disable"]),
	}
	o.disableAll = o.disable[targeting.Wildcard]
	return o, nil
}

func splitList(raw []string) map[string]bool {
	out := make(map[string]bool)
	for _, chunk := range raw {
		for _, name := range strings.Split(chunk, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				out[name] = true
			}
		}
	}
	return out
}

// Decision returns the override verdict for a plugin name. An explicit
// enable always wins, including under disable=all.
func (o Overrides) Decision(name string) OverrideDecision {
	if o.enable[name] {
		return OverrideEnabled
	}
	if o.disableAll || o.disable[name] {
		return OverrideDisabled
	}
	return OverrideNone
}

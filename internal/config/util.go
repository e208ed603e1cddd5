package config

import (
	"maps"
	"slices"
)

// sortedKeys returns the map's keys in sorted order for deterministic output.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

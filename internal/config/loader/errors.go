package loader

import "errors"

var (
	// ErrNoSourceData is returned when a loader is created with no source bytes
	ErrNoSourceData = errors.New("no source data provided to loader")

	// ErrParseToml is returned when the TOML source cannot be parsed
	ErrParseToml = errors.New("failed to parse TOML")

	// ErrUnsupportedExtension is returned for config files with an unknown extension
	ErrUnsupportedExtension = errors.New("unsupported config extension")
)

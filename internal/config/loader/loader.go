// Package loader handles reading configuration sources and decoding them
// into caller-supplied structures.
package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	gotoml "github.com/pelletier/go-toml/v2"
)

type LoaderFunc func([]byte) Loader

// Loader decodes a configuration source into a target structure.
type Loader interface {
	// Unmarshal parses the source and stores the result in target.
	Unmarshal(target any) error
	// Source returns the raw bytes the loader was created with.
	Source() []byte
}

// NewLoaderFromBytes creates a new Loader with the provided bytes
func NewLoaderFromBytes(data []byte, lodFunc LoaderFunc) (Loader, error) {
	if len(data) == 0 {
		return nil, ErrNoSourceData
	}
	return lodFunc(data), nil
}

// NewLoaderFromReader creates a new Loader from an io.Reader
func NewLoaderFromReader(reader io.Reader, lodFunc LoaderFunc) (Loader, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data from reader: %w", err)
	}
	return lodFunc(data), nil
}

// NewLoaderFromFilePath creates a new Loader from a file path
func NewLoaderFromFilePath(filePath string) (Loader, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}

	// Determine loader type based on extension
	ext := filepath.Ext(filePath)
	switch ext {
	case ".toml":
		return NewTomlLoader(data), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedExtension, ext)
	}
}

// TomlLoader implements the Loader interface for TOML sources.
type TomlLoader struct {
	source []byte
}

// NewTomlLoader creates a new TOML configuration loader
func NewTomlLoader(source []byte) *TomlLoader {
	return &TomlLoader{source: source}
}

// Unmarshal parses the TOML source into the target structure
func (l *TomlLoader) Unmarshal(target any) error {
	if len(l.source) == 0 {
		return ErrNoSourceData
	}
	if err := gotoml.Unmarshal(l.source, target); err != nil {
		return fmt.Errorf("%w: %w", ErrParseToml, err)
	}
	return nil
}

// Source returns the raw TOML bytes
func (l *TomlLoader) Source() []byte {
	return l.source
}

// Package config loads and validates the scriptgate TOML manifest that
// declares plugins, targeting rules, experiments, and runtime options.
package config

import (
	"fmt"
	"io"

	"github.com/atlanticdynamic/scriptgate/internal/config/errz"
	"github.com/atlanticdynamic/scriptgate/internal/config/loader"
	"github.com/atlanticdynamic/scriptgate/internal/config/logs"
)

// Version is the manifest schema version this build understands.
const Version = "v1"

// Config is the top-level scriptgate manifest.
type Config struct {
	Version     string           `toml:"version"`
	Host        string           `toml:"host" env_interpolation:"yes"`
	EventPrefix string           `toml:"event_prefix"`
	Logging     logs.Config      `toml:"logging"`
	Consent     ConsentConfig    `toml:"consent"`
	Dimensions  DimensionsConfig `toml:"dimensions"`
	Plugins     []Plugin         `toml:"plugins" env_interpolation:"yes"`
	Experiments []Experiment     `toml:"experiments" env_interpolation:"yes"`
}

// ConsentConfig seeds the consent ledger with states granted at startup.
type ConsentConfig struct {
	Granted []string `toml:"granted"`
}

// DimensionsConfig declares page context dimensions known at config time.
// Values registers static dimension values; MatchTypes tunes how include and
// exclude rules compare each dimension.
type DimensionsConfig struct {
	Values     map[string]string `toml:"values"`
	MatchTypes map[string]string `toml:"match_types"`
}

// NewConfig loads configuration from a TOML file
func NewConfig(filePath string) (*Config, error) {
	ld, err := loader.NewLoaderFromFilePath(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrFailedToLoadConfig, err)
	}
	return newFromLoader(ld)
}

// NewConfigFromBytes loads configuration from TOML bytes
func NewConfigFromBytes(data []byte) (*Config, error) {
	ld, err := loader.NewLoaderFromBytes(data, func(data []byte) loader.Loader {
		return loader.NewTomlLoader(data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrFailedToLoadConfig, err)
	}
	return newFromLoader(ld)
}

// NewConfigFromReader loads configuration from an io.Reader providing TOML data
func NewConfigFromReader(reader io.Reader) (*Config, error) {
	ld, err := loader.NewLoaderFromReader(reader, func(data []byte) loader.Loader {
		return loader.NewTomlLoader(data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrFailedToLoadConfig, err)
	}
	return newFromLoader(ld)
}

func newFromLoader(ld loader.Loader) (*Config, error) {
	cfg := &Config{}
	if err := ld.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrFailedToLoadConfig, err)
	}

	if cfg.Version == "" {
		cfg.Version = Version
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrFailedToValidateConfig, err)
	}

	return cfg, nil
}

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/atlanticdynamic/scriptgate/internal/config/errz"
	"github.com/atlanticdynamic/scriptgate/internal/interpolation"
	"github.com/robbyt/go-polyscript/engines/risor"
	"github.com/robbyt/go-polyscript/engines/risor/evaluator"
	"github.com/robbyt/go-polyscript/platform"
	"github.com/robbyt/go-polyscript/platform/constants"
	"github.com/robbyt/go-polyscript/platform/data"
	"github.com/robbyt/go-polyscript/platform/script/loader"
)

// DefaultScriptTimeout caps Risor script execution when no timeout is configured.
const DefaultScriptTimeout = 10 * time.Second

// RisorScript holds a Risor script used for special targeting predicates and
// experiment variations. The script is compiled once during Validate.
type RisorScript struct {
	// Code contains the Risor script source code.
	Code string `toml:"code" env_interpolation:"no"`
	// URI contains the location to load the script from (file://, https://, etc.)
	URI string `toml:"uri" env_interpolation:"yes"`
	// Timeout is the maximum execution time allowed for the script.
	Timeout Duration `toml:"timeout"`

	// compiledEvaluator stores the concrete Risor evaluator after compilation
	compiledEvaluator *evaluator.Evaluator
	// buildOnce ensures build() is called exactly once
	buildOnce sync.Once
	// buildErr stores any error from the build process
	buildErr error
}

// String returns a string representation of the RisorScript.
func (r *RisorScript) String() string {
	if r == nil {
		return "Risor(nil)"
	}
	if r.URI != "" {
		return fmt.Sprintf("Risor(uri=%s, timeout=%s)", r.URI, r.Timeout)
	}
	return fmt.Sprintf("Risor(code=%d chars, timeout=%s)", len(r.Code), r.Timeout)
}

// Validate checks if the RisorScript is valid and compiles the script.
func (r *RisorScript) Validate() error {
	var errs []error

	// Interpolate all tagged fields
	if err := interpolation.InterpolateStruct(r); err != nil {
		errs = append(errs, fmt.Errorf("interpolation failed for Risor script: %w", err))
	}

	// XOR validation: either code OR uri must be present, but not both and not neither
	if r.Code == "" && r.URI == "" {
		errs = append(errs, errz.ErrMissingCodeAndURI)
	}
	if r.Code != "" && r.URI != "" {
		errs = append(errs, errz.ErrBothCodeAndURI)
	}

	// Timeout must not be negative
	if r.Timeout < 0 {
		errs = append(errs, errz.ErrNegativeTimeout)
	}

	// If basic validation failed, don't attempt compilation
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	// Trigger compilation
	r.build()
	return r.buildErr
}

// build compiles the script - called lazily by Validate() or GetCompiledEvaluator()
func (r *RisorScript) build() {
	r.buildOnce.Do(func() {
		scriptLoader, err := createLoaderFromSource(r.Code, r.URI)
		if err != nil {
			r.buildErr = fmt.Errorf("%w: %w", errz.ErrLoaderCreation, err)
			return
		}

		// Compile script using go-polyscript
		logger := slog.Default()
		r.compiledEvaluator, err = risor.FromRisorLoader(logger.Handler(), scriptLoader)
		if err != nil {
			r.buildErr = fmt.Errorf("%w: %w", errz.ErrCompilationFailed, err)
			return
		}
	})
}

// GetCompiledEvaluator returns the abstract platform.Evaluator interface.
func (r *RisorScript) GetCompiledEvaluator() (platform.Evaluator, error) {
	r.build()
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	return r.compiledEvaluator, nil
}

// GetTimeout returns the timeout duration, with a default fallback.
func (r *RisorScript) GetTimeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout.AsDuration()
	}
	return DefaultScriptTimeout
}

// Eval runs the compiled script with the provided payload available as the
// script's ctx data, returning whatever the script produced.
func (r *RisorScript) Eval(ctx context.Context, payload map[string]any) (any, error) {
	eval, err := r.GetCompiledEvaluator()
	if err != nil {
		return nil, err
	}

	evalCtx, cancel := context.WithTimeout(ctx, r.GetTimeout())
	defer cancel()

	contextProvider := data.NewContextProvider(constants.EvalData)
	enrichedCtx, err := contextProvider.AddDataToContext(evalCtx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to add script data: %w", err)
	}

	result, err := eval.Eval(enrichedCtx)
	if err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}
	return result.Interface(), nil
}

// createLoaderFromSource creates a go-polyscript loader based on code or URI.
// Supports inline code, file:// paths, and http/https URLs.
func createLoaderFromSource(code, uri string) (loader.Loader, error) {
	if code != "" {
		return loader.NewFromString(code)
	}

	if uri != "" {
		if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
			return loader.NewFromHTTP(uri)
		}

		// Handle file:// prefix - remove it if present and resolve relative paths
		path := strings.TrimPrefix(uri, "file://")

		if !filepath.IsAbs(path) {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve relative path %q: %w", path, err)
			}
			path = absPath
		}

		return loader.NewFromDisk(path)
	}

	return nil, errz.ErrMissingCodeAndURI
}

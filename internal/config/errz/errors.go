// Package errz provides shared error definitions for the config package and its subpackages.
package errz

import "errors"

// Top-level error categories
var (
	ErrFailedToLoadConfig     = errors.New("failed to load config")
	ErrFailedToValidateConfig = errors.New("failed to validate config")
	ErrUnsupportedConfigVer   = errors.New("unsupported config version")
)

// Validation specific errors
var (
	ErrDuplicateName        = errors.New("duplicate name")
	ErrEmptyName            = errors.New("empty name")
	ErrInvalidReference     = errors.New("invalid reference")
	ErrInvalidValue         = errors.New("invalid value")
	ErrMissingRequiredField = errors.New("missing required field")
)

// Type specific errors
var (
	ErrInvalidMatchType = errors.New("invalid match type")
	ErrInvalidLocation  = errors.New("invalid script location")
	ErrInvalidTestRange = errors.New("invalid test range")
)

// Script specific errors
var (
	ErrEmptyCode         = errors.New("empty code")
	ErrMissingCodeAndURI = errors.New("either code or uri must be provided")
	ErrBothCodeAndURI    = errors.New("code and uri are mutually exclusive")
	ErrNegativeTimeout   = errors.New("negative timeout")
	ErrLoaderCreation    = errors.New("failed to create script loader")
	ErrCompilationFailed = errors.New("script compilation failed")
)

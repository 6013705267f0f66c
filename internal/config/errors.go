package config

import (
	"errors"

	"github.com/dshills/varlens/internal/config/loader"
)

// Errors returned by configuration operations.
var (
	// ErrInvalidValue indicates a setting holds a value outside its domain.
	ErrInvalidValue = errors.New("invalid configuration value")

	// ErrNotLoaded indicates Config was requested before Load.
	ErrNotLoaded = errors.New("configuration not loaded")
)

// ParseError reports a malformed configuration file.
type ParseError = loader.ParseError

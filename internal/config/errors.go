package config

import "errors"

// Error definitions for config package.
var (
	// Configuration file errors.
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileParse    = errors.New("failed to parse config file")
	// Configuration validation errors.
	ErrInvalidMaxDepth  = errors.New("max_depth must be positive")
	ErrInvalidMaxFiles  = errors.New("max_files must be positive")
	ErrNoExtensions     = errors.New("extensions cannot be empty")
	ErrNoDirectives     = errors.New("search_directives cannot be empty")
	ErrInvalidKeyword   = errors.New("callable keywords cannot be empty")
	ErrInvalidExtension = errors.New("extensions must start with a dot")
)

// Package config loads analyzer settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the project root when no
// explicit path is given.
const FileName = ".litec-analyzer.yaml"

// Config represents the analyzer configuration.
type Config struct {
	MaxDepth         int      `yaml:"max_depth"`
	MaxFiles         int      `yaml:"max_files"`
	Extensions       []string `yaml:"extensions"`
	SearchDirectives []string `yaml:"search_directives"`
	Keywords         Keywords `yaml:"keywords"`
	Exclude          []string `yaml:"exclude"`
	CheckSyntax      bool     `yaml:"check_syntax"`
	Neo4j            Neo4j    `yaml:"neo4j"`
}

// Keywords are the leading words that introduce the three callable kinds.
type Keywords struct {
	Void     string `yaml:"void"`
	Function string `yaml:"function"`
	Action   string `yaml:"action"`
}

// Neo4j holds the optional graph export target.
type Neo4j struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Enabled reports whether an export target is configured.
func (n Neo4j) Enabled() bool {
	return n.URI != ""
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MaxDepth:         10,
		MaxFiles:         1000,
		Extensions:       []string{".c", ".h"},
		SearchDirectives: []string{"EXTRA_PATH", "PRAGMA_PATH"},
		Keywords: Keywords{
			Void:     "void",
			Function: "function",
			Action:   "action",
		},
		Neo4j: Neo4j{User: "neo4j"},
	}
}

// Load reads the configuration at path. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigFileParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the default
// configuration otherwise. Parse and validation errors are still returned.
func LoadWithFallback(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, ErrConfigFileNotFound) {
		return Default(), nil
	}
	return cfg, err
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.MaxDepth <= 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxFiles <= 0 {
		return ErrInvalidMaxFiles
	}
	if len(c.Extensions) == 0 {
		return ErrNoExtensions
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
		}
	}
	if len(c.SearchDirectives) == 0 {
		return ErrNoDirectives
	}
	if c.Keywords.Void == "" || c.Keywords.Function == "" || c.Keywords.Action == "" {
		return ErrInvalidKeyword
	}
	return nil
}

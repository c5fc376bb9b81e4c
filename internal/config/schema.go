// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for tgplug.
package config

import (
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/telemetry"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the directory used for persistent module data.
	DataDir string `yaml:"data_dir,omitempty"`

	Log LogConfig `yaml:"log"`

	Telemetry telemetry.Config `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "bot.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Secrets holds values substituted from the environment into
	// credential keys (token, password, ...). They are redacted from logs.
	Secrets []string `yaml:"-"`
}

// ModuleIDs returns the configured module IDs in load order, which is
// sorted by ID.
func (c *Config) ModuleIDs() []string {
	return slices.Sorted(maps.Keys(c.Modules))
}

// LogConfig selects the log level and output encoding.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`
	// Format is text or json. Defaults to text.
	Format string `yaml:"format"`
}

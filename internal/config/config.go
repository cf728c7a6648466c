// Package config loads CLI configuration from a YAML file with environment
// fallbacks, and owns construction of the shared structured logger.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	colada "github.com/87xie/pinia-colada"
)

// DefaultPath is the default config file location relative to the user's
// home directory.
const DefaultPath = ".colada/config.yaml"

// Config is the CLI configuration file schema.
type Config struct {
	// StaleTime is the default staleness threshold applied to bench
	// entries, in ParseStaleTime format ("30", "5m", "1h30m").
	StaleTime string `yaml:"stale_time,omitempty"`

	// Logging controls log output.
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	Level string `yaml:"level,omitempty"`
}

// Load reads the config file at path. An empty path resolves to DefaultPath
// under the user's home directory. A missing file is not an error; defaults
// apply.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, DefaultPath)
		}
	}

	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// EffectiveStaleTime resolves the staleness threshold: the config file
// value when set, otherwise the environment override or library default.
func (c *Config) EffectiveStaleTime() (time.Duration, error) {
	if c.StaleTime == "" {
		return colada.StaleTimeFromEnv(), nil
	}
	d, err := colada.ParseStaleTime(c.StaleTime)
	if err != nil {
		return 0, fmt.Errorf("stale_time: %w", err)
	}
	return d, nil
}

// Package config holds the node-wide section of the configuration.
package config

import (
	"fmt"

	"github.com/encointer/personhood-oracle/common/logging"
)

// DefaultLevelKey is the log level map key applying to modules without an
// entry of their own.
const DefaultLevelKey = "default"

// Config is the node-wide configuration.
type Config struct {
	// DataDir holds the chain store and the key files.
	DataDir string    `yaml:"data_dir"`
	Log     LogConfig `yaml:"log,omitempty"`
}

// LogConfig is the logging configuration.
type LogConfig struct {
	// File is the log file, relative paths being resolved against the data
	// directory. Empty means standard output.
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"`
	// Level maps module prefixes to levels.
	Level map[string]string `yaml:"level,omitempty"`
}

// Validate validates the configuration settings.
func (c *Config) Validate() error {
	if c.Log.Format != "" {
		var f logging.Format
		if err := f.Set(c.Log.Format); err != nil {
			return fmt.Errorf("log.format: %w", err)
		}
	}
	for module, v := range c.Log.Level {
		var lvl logging.Level
		if err := lvl.Set(v); err != nil {
			return fmt.Errorf("log.level.%s: %w", module, err)
		}
	}
	return nil
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Format: logging.FmtLogfmt.String(),
			Level: map[string]string{
				DefaultLevelKey: logging.LevelInfo.String(),
				// Compaction chatter.
				"badger": logging.LevelWarn.String(),
			},
		},
	}
}

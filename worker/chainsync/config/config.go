// Package config implements the chain sync worker configuration options.
package config

import (
	"fmt"
	"time"
)

// Config is the chain sync worker configuration structure.
type Config struct {
	// PollInterval is the interval at which the chain store is polled for
	// new headers.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxBackoff bounds the retry interval after a failed sync.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Validate validates the configuration settings.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.MaxBackoff < c.PollInterval {
		return fmt.Errorf("max_backoff must not be smaller than poll_interval")
	}
	return nil
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		MaxBackoff:   time.Minute,
	}
}

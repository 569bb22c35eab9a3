// Package config implements the direct RPC worker configuration options.
package config

import "fmt"

// Config is the direct RPC worker configuration structure.
type Config struct {
	// Enabled enables the direct RPC server.
	Enabled bool `yaml:"enabled"`
	// Address is the listen address of the direct RPC server.
	Address string `yaml:"address"`
	// WebSocket enables the websocket endpoint.
	WebSocket bool `yaml:"websocket"`
	// MaxRequestSize is the maximum size of a single request in bytes.
	MaxRequestSize int64 `yaml:"max_request_size"`
}

// Validate validates the configuration settings.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Address == "" {
		return fmt.Errorf("missing address")
	}
	if c.MaxRequestSize <= 0 {
		return fmt.Errorf("max_request_size must be positive")
	}
	return nil
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Address:        "127.0.0.1:2000",
		WebSocket:      true,
		MaxRequestSize: 1 << 20,
	}
}

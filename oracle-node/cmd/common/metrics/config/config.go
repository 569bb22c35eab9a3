// Package config holds the metrics section of the node configuration.
package config

import "fmt"

const (
	// ModeNone disables metrics.
	ModeNone = "none"
	// ModePull serves metrics for scraping over HTTP.
	ModePull = "pull"
)

// Config is the metrics configuration.
type Config struct {
	Mode    string `yaml:"mode"`
	Address string `yaml:"address"`
	// Labels are attached to the node's up gauge, for telling nodes apart
	// on a shared dashboard.
	Labels map[string]string `yaml:"labels,omitempty"`
}

// Validate validates the configuration settings.
func (c *Config) Validate() error {
	switch {
	case c.Mode == ModeNone:
		return nil
	case c.Mode != ModePull:
		return fmt.Errorf("unknown metrics mode: %s", c.Mode)
	case c.Address == "":
		return fmt.Errorf("pull mode requires an address")
	}
	return nil
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{
		Mode:    ModeNone,
		Address: "127.0.0.1:3000",
	}
}

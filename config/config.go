// Package config implements global configuration options.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/a8m/envsubst"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	light "github.com/encointer/personhood-oracle/light/config"
	common "github.com/encointer/personhood-oracle/oracle-node/cmd/common/config"
	metrics "github.com/encointer/personhood-oracle/oracle-node/cmd/common/metrics/config"
	oracle "github.com/encointer/personhood-oracle/oracle/config"
	chainsync "github.com/encointer/personhood-oracle/worker/chainsync/config"
	direct "github.com/encointer/personhood-oracle/worker/direct/config"
)

// GlobalConfig holds the global configuration options.
var GlobalConfig Config

// Config is the top-level configuration structure.
type Config struct {
	Common    common.Config    `yaml:"common"`
	Metrics   metrics.Config   `yaml:"metrics,omitempty"`
	Oracle    oracle.Config    `yaml:"oracle"`
	Light     light.Config     `yaml:"light"`
	DirectRPC direct.Config    `yaml:"direct_rpc"`
	ChainSync chainsync.Config `yaml:"chain_sync"`
}

// Validate validates the configuration settings, reporting every invalid
// section at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	for _, section := range []struct {
		name     string
		validate func() error
	}{
		{"common", c.Common.Validate},
		{"metrics", c.Metrics.Validate},
		{"oracle", c.Oracle.Validate},
		{"light", c.Light.Validate},
		{"direct_rpc", c.DirectRPC.Validate},
		{"chain_sync", c.ChainSync.Validate},
	} {
		if err := section.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", section.name, err))
		}
	}

	return result.ErrorOrNil()
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{
		Common:    common.DefaultConfig(),
		Metrics:   metrics.DefaultConfig(),
		Oracle:    oracle.DefaultConfig(),
		Light:     light.DefaultConfig(),
		DirectRPC: direct.DefaultConfig(),
		ChainSync: chainsync.DefaultConfig(),
	}
}

// Parse parses a configuration document, substituting environment variables
// first. Unknown fields are an error.
func Parse(raw []byte) (*Config, error) {
	data, err := envsubst.Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitConfig initializes the global configuration from the given file.
func InitConfig(cfgFile string) error {
	raw, err := os.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("unable to read config file '%s': %w", cfgFile, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", cfgFile, err)
	}
	GlobalConfig = *cfg
	return nil
}

func init() {
	GlobalConfig = DefaultConfig()
}

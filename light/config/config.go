// Package config implements the light client configuration options.
package config

import (
	"fmt"

	"github.com/encointer/personhood-oracle/common/crypto/hash"
	"github.com/encointer/personhood-oracle/common/crypto/signature"
)

// Config is the light client configuration structure.
type Config struct {
	// Trust is the trust root the light client is bootstrapped from.
	Trust TrustConfig `yaml:"trust"`
}

// TrustConfig is the light client trust root configuration.
type TrustConfig struct {
	// Height is the height of the trusted checkpoint header.
	Height uint64 `yaml:"height"`
	// Hash is the hex-encoded hash of the trusted checkpoint header.
	Hash string `yaml:"hash"`
	// Authorities are the base64-encoded authority public keys.
	Authorities []string `yaml:"authorities"`
	// Threshold is the number of authority signatures a header needs. Zero
	// selects the default of more than two thirds.
	Threshold int `yaml:"threshold,omitempty"`
}

// Validate validates the configuration settings.
func (c *Config) Validate() error {
	if c.Trust.Hash == "" {
		// Not configured, the node refuses to start but other commands work.
		return nil
	}
	if _, err := c.Trust.HeaderHash(); err != nil {
		return err
	}
	if _, err := c.Trust.AuthorityKeys(); err != nil {
		return err
	}
	if c.Trust.Threshold < 0 || c.Trust.Threshold > len(c.Trust.Authorities) {
		return fmt.Errorf("trust threshold %d out of range", c.Trust.Threshold)
	}
	return nil
}

// HeaderHash returns the parsed trusted header hash.
func (c *TrustConfig) HeaderHash() (hash.Hash, error) {
	var h hash.Hash
	if err := h.UnmarshalHex(c.Hash); err != nil {
		return hash.Hash{}, fmt.Errorf("malformed trust hash: %w", err)
	}
	return h, nil
}

// AuthorityKeys returns the parsed authority public keys.
func (c *TrustConfig) AuthorityKeys() ([]signature.PublicKey, error) {
	if len(c.Authorities) == 0 {
		return nil, fmt.Errorf("no trusted authorities")
	}
	keys := make([]signature.PublicKey, 0, len(c.Authorities))
	for i, raw := range c.Authorities {
		var pk signature.PublicKey
		if err := pk.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("malformed authority %d: %w", i, err)
		}
		keys = append(keys, pk)
	}
	return keys, nil
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{}
}

// Package config implements the oracle configuration options.
package config

import (
	"fmt"
	"time"

	storage "github.com/encointer/personhood-oracle/storage/api"
)

// Config is the oracle configuration structure.
type Config struct {
	// StorageBackend is the storage backend used by the enclave (direct, proxied).
	StorageBackend string `yaml:"storage_backend"`

	// RelayTimeout bounds a single relay publication.
	RelayTimeout time.Duration `yaml:"relay_timeout"`

	// IssuerKeys are additional named credential issuer keys that callers
	// may reference. The default issuer key is always derived from the
	// enclave identity.
	IssuerKeys map[string]IssuerKeyConfig `yaml:"issuer_keys,omitempty"`
}

// IssuerKeyConfig is a named issuer key. Exactly one of the fields must be set.
type IssuerKeyConfig struct {
	// Label derives the key from the enclave identity under the given label.
	Label string `yaml:"label,omitempty"`
	// Secret is an nsec or hex encoded secp256k1 secret key.
	Secret string `yaml:"secret,omitempty"`
}

// Validate validates the configuration settings.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case storage.BackendDirect, storage.BackendProxied:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}
	if c.RelayTimeout <= 0 {
		return fmt.Errorf("relay_timeout must be positive")
	}
	for name, key := range c.IssuerKeys {
		if name == "" {
			return fmt.Errorf("issuer key with empty name")
		}
		if (key.Label == "") == (key.Secret == "") {
			return fmt.Errorf("issuer key '%s': exactly one of label or secret must be set", name)
		}
	}
	return nil
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{
		StorageBackend: storage.BackendProxied,
		RelayTimeout:   30 * time.Second,
	}
}

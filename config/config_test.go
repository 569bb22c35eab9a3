package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	require.NoError(cfg.Validate(), "default config must be valid")
	require.Equal("proxied", cfg.Oracle.StorageBackend)
	require.Equal("none", cfg.Metrics.Mode)
}

func TestParse(t *testing.T) {
	require := require.New(t)

	t.Setenv("TEST_ORACLE_NSEC", "nsec1vl029mgpspedva04g90vltkh6fvh240zqtv9k0t9af8935ke9laqsnlfe5")

	cfg, err := Parse([]byte(`
common:
  data_dir: /var/lib/oracle
oracle:
  storage_backend: direct
  relay_timeout: 5s
  issuer_keys:
    events:
      label: events-2024
    legacy:
      secret: ${TEST_ORACLE_NSEC}
chain_sync:
  poll_interval: 2s
  max_backoff: 10s
`))
	require.NoError(err, "Parse")
	require.Equal("/var/lib/oracle", cfg.Common.DataDir)
	require.Equal("direct", cfg.Oracle.StorageBackend)
	require.Equal(5*time.Second, cfg.Oracle.RelayTimeout)
	require.Equal("events-2024", cfg.Oracle.IssuerKeys["events"].Label)
	require.Equal("nsec1vl029mgpspedva04g90vltkh6fvh240zqtv9k0t9af8935ke9laqsnlfe5", cfg.Oracle.IssuerKeys["legacy"].Secret)
	require.Equal(2*time.Second, cfg.ChainSync.PollInterval)
	require.True(cfg.DirectRPC.Enabled, "unset sections keep their defaults")
}

func TestParseUnknownField(t *testing.T) {
	require := require.New(t)

	_, err := Parse([]byte("oracle:\n  storage_backnd: direct\n"))
	require.Error(err, "unknown fields must be rejected")
}

func TestValidateReportsAllSections(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	cfg.Metrics.Mode = "push"
	cfg.Oracle.StorageBackend = "remote"
	cfg.ChainSync.PollInterval = 0

	err := cfg.Validate()
	require.Error(err)
	require.Contains(err.Error(), "metrics: unknown metrics mode: push")
	require.Contains(err.Error(), "oracle: unknown storage backend: remote")
	require.Contains(err.Error(), "chain_sync: poll_interval must be positive")
}

func TestValidateIssuerKeys(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	_, err := Parse([]byte("oracle:\n  issuer_keys:\n    both:\n      label: a\n      secret: b\n"))
	require.Error(err, "an issuer key must not set both label and secret")
	require.NoError(cfg.Validate())
}

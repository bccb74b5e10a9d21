package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: cachemon-test\n"))
	require.NoError(t, err)

	assert.Equal(t, "cachemon-test", cfg.App.Name)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "*/1 * * * *", cfg.Poller.CronSchedule)
	assert.Equal(t, 1000, cfg.Poller.PaginationLimit)
	assert.Equal(t, 50, cfg.Batch.BatchSize)
	assert.Equal(t, 100, cfg.Alerts.MinBidSafetyBps)
	assert.Equal(t, 10000, cfg.Alerts.MaxBidSafetyBps)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvertedBidSafetyBounds(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
alerts:
  min_bid_safety_bps: 5000
  max_bid_safety_bps: 200
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bid safety bounds")
}

func TestValidateRejectsZeroBatchSize(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
batch:
  batch_size: 0
`))
	require.NoError(t, err)

	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresRPCURLForEnabledChain(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
blockchains:
  - name: arbitrum-sepolia
    enabled: true
    cache_manager_address: "0x0c9043d042ab52cfa8d0207459260040cca54253"
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc url")
}

func TestValidateSkipsDisabledChains(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
blockchains:
  - name: arbitrum-one
    enabled: false
`))
	require.NoError(t, err)

	assert.NoError(t, cfg.Validate())
}

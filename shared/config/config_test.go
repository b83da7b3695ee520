package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gate4ai/toolgate/shared/config"
)

func TestInternalConfigDefaults(t *testing.T) {
	cfg := config.NewInternalConfig()

	pageSize, err := cfg.DefaultPageSize()
	require.NoError(t, err)
	assert.Equal(t, 25, pageSize)

	maxPage, err := cfg.MaxPageSize()
	require.NoError(t, err)
	assert.Equal(t, 100, maxPage)

	maxBatch, err := cfg.MaxBatchSize()
	require.NoError(t, err)
	assert.Equal(t, 50, maxBatch)

	ttl, err := cfg.ConfirmTokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)

	ro, err := cfg.ReadOnly()
	require.NoError(t, err)
	assert.False(t, ro)

	cfg.SetReadOnly(true)
	ro, err = cfg.ReadOnly()
	require.NoError(t, err)
	assert.True(t, ro)
}

const testYaml = `
server:
  name: test-gateway
  version: 0.3.0
  log_level: debug
  read_only: true
limits:
  max_page_size: 40
  max_batch_size: 10
  batch_workers: 2
  auto_safe_threshold: 1
retry:
  max_attempts: 2
  initial_interval: 10ms
confirmation:
  token_ttl: 30s
throttling:
  rps: 5
  rpm: 100
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "toolgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestYamlConfigLoad(t *testing.T) {
	path := writeTestConfig(t, testYaml)
	cfg, err := config.NewYamlConfig(path, zap.NewNop())
	require.NoError(t, err)
	defer cfg.Close()

	name, err := cfg.ServerName()
	require.NoError(t, err)
	assert.Equal(t, "test-gateway", name)

	ro, err := cfg.ReadOnly()
	require.NoError(t, err)
	assert.True(t, ro)

	maxPage, err := cfg.MaxPageSize()
	require.NoError(t, err)
	assert.Equal(t, 40, maxPage)

	// Unset values fall back to defaults.
	pageSize, err := cfg.DefaultPageSize()
	require.NoError(t, err)
	assert.Equal(t, 25, pageSize)

	attempts, err := cfg.RetryMaxAttempts()
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	interval, err := cfg.RetryInitialInterval()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, interval)

	ttl, err := cfg.ConfirmTokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)
}

func TestYamlConfigMissingFile(t *testing.T) {
	_, err := config.NewYamlConfig(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop())
	require.Error(t, err)
}

func TestYamlConfigBadDuration(t *testing.T) {
	path := writeTestConfig(t, "confirmation:\n  token_ttl: sometimes\n")
	_, err := config.NewYamlConfig(path, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_ttl")
}

func TestYamlConfigReload(t *testing.T) {
	path := writeTestConfig(t, testYaml)
	cfg, err := config.NewYamlConfig(path, zap.NewNop())
	require.NoError(t, err)
	defer cfg.Close()
	require.NoError(t, cfg.StartWatching())

	require.NoError(t, os.WriteFile(path, []byte("server:\n  name: renamed\n"), 0o600))

	require.Eventually(t, func() bool {
		name, err := cfg.ServerName()
		return err == nil && name == "renamed"
	}, 3*time.Second, 20*time.Millisecond, "config was not reloaded after file change")
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdgusya/crawl-selector/internal/config"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Picker.HoverDebounce)
	assert.Equal(t, 10, cfg.Picker.PreviewLimit)
	assert.Equal(t, 4, cfg.Picker.MaxAlternatives)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := "server:\n  port: 9000\nstore:\n  driver: redis\nfetch:\n  timeout: 3s\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("ENV_FILE", filepath.Join(dir, "absent.env"))
	t.Setenv("REDIS_ADDRESS", "redis:6380")
	t.Setenv("FETCH_TIMEOUT", "7s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, config.DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis:6380", cfg.Redis.Address)
	assert.Equal(t, 7*time.Second, cfg.Fetch.Timeout)
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Store.Driver = "sqlite"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yml", config.GetConfigPath(config.DefaultPath))

	t.Setenv("CONFIG_PATH", "/etc/crawl-selector.yml")
	assert.Equal(t, "/etc/crawl-selector.yml", config.GetConfigPath(config.DefaultPath))
}

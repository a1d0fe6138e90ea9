package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, 10*time.Second, cfg.WalletGatewayTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("WALLET_GATEWAY_TIMEOUT", "3s")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, 3*time.Second, cfg.WalletGatewayTimeout)
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("MissingSecret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("BadPort", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DB_PORT", "five")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestClientConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Authenticated())
	assert.Equal(t, filepath.Join(dir, "intent.db"), cfg.IntentDB)

	cfg.Token = "tok"
	cfg.APIURL = "https://api.example.test"
	require.NoError(t, SaveClientConfig(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.True(t, loaded.Authenticated())

	timeout, err := loaded.RequestTimeout()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, timeout)
}

func TestClientConfigRejectsBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`timeout = "soon"`), 0o600))

	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

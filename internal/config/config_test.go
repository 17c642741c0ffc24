package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg := DefaultConfig()
	assert.Equal(t, DefaultMSAClientID, cfg.MSAClientID)
	assert.Equal(t, DefaultRelayBuffer, cfg.RelayBuffer)
	assert.Equal(t, filepath.Join(cfg.DataDir, "logs"), cfg.LogsDir)
	assert.False(t, cfg.Verbose)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("MCFLEET_MSA_CLIENT_ID", "env-client")
	t.Setenv("MCFLEET_RELAY_BUFFER", "64")
	t.Setenv("MCFLEET_VERBOSE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-client", cfg.MSAClientID)
	assert.Equal(t, 64, cfg.RelayBuffer)
	assert.True(t, cfg.Verbose)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	cfg := DefaultConfig()
	cfg.MSAClientID = "saved-client"
	cfg.RelayBuffer = 16
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "saved-client", loaded.MSAClientID)
	assert.Equal(t, 16, loaded.RelayBuffer)
}

func TestLoadFallbacksForEmptyFields(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	dataDir := filepath.Join(xdg, "mcfleet")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.json"),
		[]byte(`{"msaClientID":"","relayBuffer":0}`), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMSAClientID, cfg.MSAClientID)
	assert.Equal(t, DefaultRelayBuffer, cfg.RelayBuffer)
	assert.Equal(t, filepath.Join(dataDir, "logs"), cfg.LogsDir)
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{
		DataDir: filepath.Join(base, "data"),
		LogsDir: filepath.Join(base, "data", "logs"),
	}
	require.NoError(t, cfg.EnsureDirs())

	info, err := os.Stat(cfg.LogsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

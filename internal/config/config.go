// Package config handles application configuration and paths.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration
type Config struct {
	// Paths
	DataDir string `json:"dataDir" env:"MCFLEET_DATA_DIR"`
	LogsDir string `json:"logsDir" env:"MCFLEET_LOGS_DIR"`

	// Auth
	MSAClientID string `json:"msaClientID" env:"MCFLEET_MSA_CLIENT_ID"`

	// Relay
	RelayBuffer int `json:"relayBuffer" env:"MCFLEET_RELAY_BUFFER"`

	// Logging
	Verbose bool `json:"verbose" env:"MCFLEET_VERBOSE"`
}

const (
	DefaultMSAClientID = "c36a9fb6-4f2a-41ff-90bd-ae7cc92031eb"
	DefaultRelayBuffer = 32
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	dataDir := getDefaultDataDir()
	return &Config{
		DataDir:     dataDir,
		LogsDir:     filepath.Join(dataDir, "logs"),
		MSAClientID: DefaultMSAClientID,
		RelayBuffer: DefaultRelayBuffer,
	}
}

// Load reads config from disk, then applies environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := filepath.Join(cfg.DataDir, "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Fallbacks if the config file had empty string or missing fields
	if cfg.MSAClientID == "" {
		cfg.MSAClientID = DefaultMSAClientID
	}
	if cfg.RelayBuffer <= 0 {
		cfg.RelayBuffer = DefaultRelayBuffer
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = filepath.Join(cfg.DataDir, "logs")
	}

	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	configPath := filepath.Join(c.DataDir, "config.json")
	return os.WriteFile(configPath, data, 0644)
}

// EnsureDirs creates all required directories
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func getDefaultDataDir() string {
	// Check for portable mode first
	exe, _ := os.Executable()
	portablePath := filepath.Join(filepath.Dir(exe), "data")
	if _, err := os.Stat(portablePath); err == nil {
		return portablePath
	}

	// Use XDG/platform-specific directories
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mcfleet")
	}

	home, _ := os.UserHomeDir()
	switch {
	case os.Getenv("APPDATA") != "": // Windows
		return filepath.Join(os.Getenv("APPDATA"), "mcfleet")
	default: // Linux/macOS
		return filepath.Join(home, ".local", "share", "mcfleet")
	}
}

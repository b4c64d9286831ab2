package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
callback_url: https://bridge.example/sub
lease_seconds: 600
lease_skew_seconds: 30
websocket_origins:
  - client.example
  - localhost
log_level: DEBUG
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, "https://bridge.example/sub", cfg.CallbackURL)
	require.Equal(t, 600, cfg.LeaseSeconds)
	require.Equal(t, 30, cfg.LeaseSkewSeconds)
	require.Equal(t, []string{"client.example", "localhost"}, cfg.WebsocketOrigins)
	require.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
callback_url: https://bridge.example
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":3000", cfg.Listen)
	require.Equal(t, 300, cfg.LeaseSeconds)
	require.Equal(t, 10, cfg.LeaseSkewSeconds)
	require.Equal(t, []string{"localhost"}, cfg.WebsocketOrigins)
	require.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadStripsTrailingSlash(t *testing.T) {
	path := writeConfig(t, `
callback_url: https://bridge.example/
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://bridge.example", cfg.CallbackURL)
}

func TestLoadMissingCallbackURL(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadSkewMustBeSmallerThanLease(t *testing.T) {
	path := writeConfig(t, `
callback_url: https://bridge.example
lease_seconds: 60
lease_skew_seconds: 60
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "listen: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
}

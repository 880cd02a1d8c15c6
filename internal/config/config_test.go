package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Asia/Tokyo", cfg.Timezone)
	require.Equal(t, 4, cfg.Concurrency)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_NormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: UTC\npast_days: 3\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "UTC", cfg.Timezone)
	require.Equal(t, 3, cfg.PastDays)
	// Unset fields fall back to defaults.
	require.Equal(t, 30, cfg.FutureDays)
	require.Equal(t, 60*time.Second, cfg.Tolerance())
	require.Equal(t, 15*time.Second, cfg.CallTimeout())
	require.Equal(t, "docs", cfg.OutDir)
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_CredentialsComeFromEnvironment(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "id-1")
	t.Setenv("TWITCH_CLIENT_SECRET", "secret-1")
	t.Setenv("YT_API_KEY", "key-1")

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "id-1", cfg.Creds.TwitchClientID)
	require.Equal(t, "secret-1", cfg.Creds.TwitchClientSecret)
	require.Equal(t, "key-1", cfg.Creds.YouTubeAPIKey)

	// Secrets never land in the file.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "secret-1")
	require.NotContains(t, string(data), "key-1")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Timezone = "America/New_York"
	cfg.PastDays = 2
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "America/New_York", got.Timezone)
	require.Equal(t, 2, got.PastDays)
	require.NotNil(t, got.BasicAuth)
	require.Equal(t, "u", got.BasicAuth.Username)
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	require.Equal(t, time.UTC, cfg.Location())
}

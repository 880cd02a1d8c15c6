package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for serve mode.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Credentials are the platform API secrets. They are resolved from the
// environment at load time and never written back to the config file.
type Credentials struct {
	TwitchClientID     string `yaml:"-" json:"-"`
	TwitchClientSecret string `yaml:"-" json:"-"`
	YouTubeAPIKey      string `yaml:"-" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA display timezone used for calendar-day grouping
	// and windowing (e.g. "Asia/Tokyo").
	Timezone string `yaml:"timezone" json:"timezone"`

	// PastDays is how many local calendar days of archived broadcasts to
	// keep, counting back from today inclusive.
	PastDays int `yaml:"past_days" json:"past_days"`

	// FutureDays bounds how far ahead scheduled broadcasts are shown.
	FutureDays int `yaml:"future_days" json:"future_days"`

	// ToleranceSeconds is the start-time proximity under which a live and
	// an archived record count as the same broadcast.
	ToleranceSeconds int `yaml:"tolerance_seconds" json:"tolerance_seconds"`

	// Concurrency caps outstanding platform calls across all creators.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// CallTimeoutSeconds is the wall-clock timeout applied to each
	// individual platform call.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds" json:"call_timeout_seconds"`

	// RosterPath points at the streamers roster JSON document.
	RosterPath string `yaml:"roster" json:"roster"`

	// LedgerPath points at the persisted cache ledger JSON document.
	LedgerPath string `yaml:"ledger" json:"ledger"`

	// OutDir receives the rendered site (index.html, timeline.ics,
	// preview.png).
	OutDir string `yaml:"out_dir" json:"out_dir"`

	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron expression driving pipeline re-runs in serve
	// mode (e.g. "*/10 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// serve-mode endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// Creds are environment-sourced secrets, populated by Load.
	Creds Credentials `yaml:"-" json:"-"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:           "Asia/Tokyo",
		PastDays:           1,
		FutureDays:         30,
		ToleranceSeconds:   60,
		Concurrency:        4,
		CallTimeoutSeconds: 15,
		RosterPath:         "data/streamers.json",
		LedgerPath:         "data/ledger.json",
		OutDir:             "docs",
		Listen:             "127.0.0.1:8080",
		RefreshCron:        "*/10 * * * *",
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.PastDays <= 0 {
		c.PastDays = def.PastDays
	}
	if c.FutureDays <= 0 {
		c.FutureDays = def.FutureDays
	}
	if c.ToleranceSeconds <= 0 {
		c.ToleranceSeconds = def.ToleranceSeconds
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.CallTimeoutSeconds <= 0 {
		c.CallTimeoutSeconds = def.CallTimeoutSeconds
	}
	if c.RosterPath == "" {
		c.RosterPath = def.RosterPath
	}
	if c.LedgerPath == "" {
		c.LedgerPath = def.LedgerPath
	}
	if c.OutDir == "" {
		c.OutDir = def.OutDir
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
}

// Tolerance returns the cross-kind match window as a duration.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.ToleranceSeconds) * time.Second
}

// CallTimeout returns the per-call wall-clock timeout as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// Location resolves the configured timezone, falling back to UTC when the
// name cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create parent directory if needed, write
//     a default config with 0600 perms, and return the default config.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
//
// Platform credentials are read from TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET
// and YT_API_KEY in either case.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.Creds = credsFromEnv()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.Creds = credsFromEnv()

	return &cfg, nil
}

func credsFromEnv() Credentials {
	return Credentials{
		TwitchClientID:     os.Getenv("TWITCH_CLIENT_ID"),
		TwitchClientSecret: os.Getenv("TWITCH_CLIENT_SECRET"),
		YouTubeAPIKey:      os.Getenv("YT_API_KEY"),
	}
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (basic auth secrets).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".jigdule-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

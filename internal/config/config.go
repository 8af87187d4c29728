package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration, constructed once at
// startup and threaded through constructors. Test code builds per-test
// configs via Default().
type Config struct {
	// PostgresDSN is the document-store connection string. Empty selects
	// the in-memory store (tests, offline CLI runs).
	PostgresDSN string `yaml:"postgres_dsn"`

	// CacheDir is the base directory for the forensic ICS cache.
	CacheDir string `yaml:"cache_dir"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") used by
	// the scheduler to trigger syncs for all enabled profiles.
	RefreshCron string `yaml:"refresh"`

	// Ruleset limits, enforced at load time.
	MaxRules                int `yaml:"max_rules"`
	MaxConditions           int `yaml:"max_conditions"`
	MaxActions              int `yaml:"max_actions"`
	MaxNestingDepth         int `yaml:"max_nesting_depth"`
	MaxTextFieldValueLength int `yaml:"max_text_field_value_length"`

	// DailySyncLimit is the per-user admission quota.
	DailySyncLimit int `yaml:"daily_sync_limit"`

	// Fetch / pipeline limits.
	MaxPayloadBytes int64         `yaml:"max_payload_bytes"`
	MaxRedirects    int           `yaml:"max_redirects"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	SyncTimeout     time.Duration `yaml:"sync_timeout"`
	BatchTimeout    time.Duration `yaml:"batch_timeout"`

	// FingerprintDescription opts the description field into event
	// fingerprinting. Off by default so cosmetic upstream edits do not
	// churn the target calendar.
	FingerprintDescription bool `yaml:"fingerprint_description"`
}

// Default returns an in-memory default configuration.
func Default() *Config {
	return &Config{
		CacheDir:                "./var/ics-cache",
		RefreshCron:             "*/30 * * * *",
		MaxRules:                15,
		MaxConditions:           10,
		MaxActions:              5,
		MaxNestingDepth:         5,
		MaxTextFieldValueLength: 256,
		DailySyncLimit:          20,
		MaxPayloadBytes:         5 << 20,
		MaxRedirects:            5,
		FetchTimeout:            30 * time.Second,
		SyncTimeout:             120 * time.Second,
		BatchTimeout:            15 * time.Second,
	}
}

// Normalize fills missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	d := Default()
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.MaxRules <= 0 {
		c.MaxRules = d.MaxRules
	}
	if c.MaxConditions <= 0 {
		c.MaxConditions = d.MaxConditions
	}
	if c.MaxActions <= 0 {
		c.MaxActions = d.MaxActions
	}
	if c.MaxNestingDepth <= 0 {
		c.MaxNestingDepth = d.MaxNestingDepth
	}
	if c.MaxTextFieldValueLength <= 0 {
		c.MaxTextFieldValueLength = d.MaxTextFieldValueLength
	}
	if c.DailySyncLimit <= 0 {
		c.DailySyncLimit = d.DailySyncLimit
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = d.MaxPayloadBytes
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = d.MaxRedirects
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = d.SyncTimeout
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = d.BatchTimeout
	}
}

// applyEnv lets deployment knobs override the file without editing it.
func (c *Config) applyEnv() {
	if v := os.Getenv("SYNCADEMIC_POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("SYNCADEMIC_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if n, ok := getenvInt("SYNCADEMIC_DAILY_SYNC_LIMIT"); ok {
		c.DailySyncLimit = n
	}
	if n, ok := getenvInt("SYNCADEMIC_MAX_RULES"); ok {
		c.MaxRules = n
	}
}

func getenvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create parent directory if needed,
//     write a default config with 0600 perms, return the default config.
//   - If the file exists: read YAML, normalize defaults, apply env
//     overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			cfg.applyEnv()
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
	cfg.applyEnv()

	return &cfg, nil
}

// Save writes the given configuration to the specified path, atomically
// via a temp file + rename, final perms 0600.
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

	tmp, err := os.CreateTemp(dir, ".syncademic-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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
	return os.Rename(tmpName, path)
}

// ValidateRedirectURI checks an OAuth redirect URI: absolute, http or
// https scheme, and no trailing slash.
func ValidateRedirectURI(raw string) error {
	if raw == "" {
		return errors.New("redirect uri is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("redirect uri invalid: %w", err)
	}
	if !u.IsAbs() {
		return errors.New("redirect uri must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("redirect uri scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("redirect uri host is empty")
	}
	if strings.HasSuffix(raw, "/") {
		return errors.New("redirect uri must not end with a trailing slash")
	}
	return nil
}

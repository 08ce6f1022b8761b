package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// TIMETRACK_BASE_URL.
const EnvPrefix = "TIMETRACK_"

const (
	defaultBaseURL    = "http://localhost:3001"
	defaultTimeout    = 15 * time.Second
	defaultTitle      = "New event"
	defaultReloadCron = "*/5 * * * *"
	defaultListen     = "127.0.0.1:3001"
	defaultDBPath     = "./var/timetrack.db"
	defaultLogLevel   = "info"
)

// Config is the top-level application configuration.
type Config struct {
	// BaseURL is the root of the remote events collection.
	BaseURL string `yaml:"base_url" json:"base_url" env:"BASE_URL"`

	// Timeout bounds each HTTP request to the remote store.
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`

	// DefaultTitle is the placeholder title of newly recorded events.
	DefaultTitle string `yaml:"default_title" json:"default_title" env:"DEFAULT_TITLE"`

	// ReloadCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// used by `timetrack watch` to reload events.
	ReloadCron string `yaml:"reload" json:"reload" env:"RELOAD"`

	// Listen is the address of the events server started by `timetrack serve`.
	Listen string `yaml:"listen" json:"listen" env:"LISTEN"`

	// DBPath is the SQLite file backing the events server.
	DBPath string `yaml:"db_path" json:"db_path" env:"DB"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level" env:"LOG_LEVEL"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      defaultBaseURL,
		Timeout:      defaultTimeout,
		DefaultTitle: defaultTitle,
		ReloadCron:   defaultReloadCron,
		Listen:       defaultListen,
		DBPath:       defaultDBPath,
		LogLevel:     defaultLogLevel,
	}
}

// DefaultPath is config.yaml under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "timetrack", "config.yaml"), nil
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if strings.TrimSpace(c.DefaultTitle) == "" {
		c.DefaultTitle = defaultTitle
	}
	if strings.TrimSpace(c.ReloadCron) == "" {
		c.ReloadCron = defaultReloadCron
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}
}

// ApplyEnv overrides fields from TIMETRACK_* environment variables. Unset
// variables leave the current values alone.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load loads configuration from the given YAML path and applies environment
// overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and used.
//   - If the file exists, YAML is read into Config.
//   - TIMETRACK_* variables override file values.
//   - Missing values are normalized to defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("write default config: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration atomically: temp file in the same
// directory, 0600 perms, then rename over path.
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

	tmp, err := os.CreateTemp(dir, ".timetrack-config-*.tmp")
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

// Package config loads catlog.yaml, applies CATLOG_* environment overrides
// and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/modoterra/catlog/pkg/core"
)

const (
	ConfigDirName     = "catlog"
	DefaultConfigName = "catlog.yaml"
	EnvPrefix         = "CATLOG_"
)

var (
	errConfigRead  = errors.New("failed to read config file")
	errConfigWrite = errors.New("failed to write config file")
)

// Config represents a catlog.yaml configuration file.
type Config struct {
	Version      int           `yaml:"version"       json:"version"`
	Follow       string        `yaml:"follow"        json:"follow,omitempty"        env:"FOLLOW"`
	Exec         string        `yaml:"exec"          json:"exec,omitempty"          env:"EXEC"`
	Shell        string        `yaml:"shell"         json:"shell"                   env:"SHELL"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"           env:"POLL_INTERVAL"`
	LogLevel     string        `yaml:"log_level"     json:"log_level"               env:"LOG_LEVEL"`
	Socket       string        `yaml:"socket"        json:"socket,omitempty"        env:"SOCKET"`
	MetricsAddr  string        `yaml:"metrics_addr"  json:"metrics_addr,omitempty"  env:"METRICS_ADDR"`
	Filter       Filter        `yaml:"filter"        json:"filter"                  envPrefix:"FILTER_"`
	Image        Image         `yaml:"image"         json:"image"                   envPrefix:"IMAGE_"`
	Notify       Notify        `yaml:"notify"        json:"notify"                  envPrefix:"NOTIFY_"`
}

// Filter selects which detected codes trigger a notification.
type Filter struct {
	Status     []int `yaml:"status,omitempty" json:"status,omitempty" env:"STATUS" envSeparator:","`
	All        bool  `yaml:"all"              json:"all"              env:"ALL"`
	ErrorsOnly bool  `yaml:"errors_only"      json:"errors_only"      env:"ERRORS_ONLY"`
}

// Image configures the http.cat picture fetch.
type Image struct {
	Enabled  bool          `yaml:"enabled"   json:"enabled"   env:"ENABLED"`
	BaseURL  string        `yaml:"base_url"  json:"base_url"  env:"BASE_URL"`
	Timeout  time.Duration `yaml:"timeout"   json:"timeout"   env:"TIMEOUT"`
	CacheDir string        `yaml:"cache_dir" json:"cache_dir" env:"CACHE_DIR"`
}

// Notify bounds how often and how long notifications may run.
type Notify struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	Rate    float64       `yaml:"rate"    json:"rate"    env:"RATE"`
	Burst   int           `yaml:"burst"   json:"burst"   env:"BURST"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Version:      1,
		Shell:        "sh",
		PollInterval: 100 * time.Millisecond,
		LogLevel:     "info",
		Filter:       Filter{ErrorsOnly: true},
		Image: Image{
			Enabled: true,
			BaseURL: "https://http.cat",
			Timeout: 15 * time.Second,
		},
		Notify: Notify{
			Timeout: 10 * time.Second,
			Rate:    2,
			Burst:   5,
		},
	}
}

// FilterConfig converts the filter section into the classification policy.
func (c Config) FilterConfig() core.FilterConfig {
	codes := make([]core.StatusCode, 0, len(c.Filter.Status))
	for _, code := range c.Filter.Status {
		codes = append(codes, core.StatusCode(code))
	}
	return core.FilterConfig{
		ExplicitCodes: codes,
		MatchAll:      c.Filter.All,
		ErrorsOnly:    c.Filter.ErrorsOnly,
	}
}

// Mode returns the ingestion mode selected by Follow and Exec.
func (c Config) Mode() core.Kind {
	switch {
	case c.Follow != "":
		return core.KindFile
	case c.Exec != "":
		return core.KindExec
	default:
		return core.KindStdin
	}
}

// Path returns the default config file location under $XDG_CONFIG_HOME.
func Path() string {
	return filepath.Join(xdg.ConfigHome, ConfigDirName, DefaultConfigName)
}

// Find returns the first catlog.yaml found in the XDG config directories, or
// an empty string.
func Find() string {
	found, err := xdg.SearchConfigFile(filepath.Join(ConfigDirName, DefaultConfigName))
	if err != nil {
		return ""
	}
	return found
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Join(fmt.Errorf("parse config: %w", err), errConfigRead)
	}
	return &cfg, nil
}

// Load reads path (skipped when empty), then applies environment overrides.
// A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Join(err, errConfigRead)
		}
		parsed, err := Parse(data)
		if err != nil {
			return nil, err
		}
		cfg = *parsed
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from CATLOG_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Join(fmt.Errorf("parse environment: %w", err), errConfigRead)
	}
	return nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Join(err, errConfigWrite)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Join(err, errConfigWrite)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Join(err, errConfigWrite)
	}
	return nil
}

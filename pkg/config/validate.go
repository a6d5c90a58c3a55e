package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/modoterra/catlog/pkg/core"
)

// Validate checks the configuration for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	if c.Follow != "" && c.Exec != "" {
		errs = append(errs, fmt.Errorf("follow and exec are mutually exclusive"))
	}

	if c.Exec != "" && c.Shell == "" {
		errs = append(errs, fmt.Errorf("exec: shell is required"))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	for _, code := range c.Filter.Status {
		if !core.StatusCode(code).Valid() {
			errs = append(errs, fmt.Errorf("filter: status %d is outside 100-599", code))
		}
	}

	if c.Image.Enabled && c.Image.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("image: timeout must be positive, got %s", c.Image.Timeout))
	}

	if c.Notify.Rate < 0 {
		errs = append(errs, fmt.Errorf("notify: rate must not be negative, got %g", c.Notify.Rate))
	}
	if c.Notify.Burst < 0 {
		errs = append(errs, fmt.Errorf("notify: burst must not be negative, got %d", c.Notify.Burst))
	}

	return errs
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be debug, info, warn or error; got %q", level)
	}
}

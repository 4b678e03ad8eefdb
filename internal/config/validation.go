package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxDurationMS is the largest millisecond count a time.Duration can hold.
const MaxDurationMS = math.MaxInt64 / int64(time.Millisecond)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
)

// Validate rejects configs the server cannot run with and returns warnings
// for ones it can run with but probably should not.
func Validate(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	warnings := []string{}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return warnings, errors.New("listen_addr is required")
	}
	if cfg.MetricsAddr != "" && cfg.MetricsAddr == cfg.ListenAddr {
		return warnings, errors.New("metrics_addr must differ from listen_addr")
	}
	if err := validateExpiry(cfg, &warnings); err != nil {
		return warnings, err
	}
	if err := validateLogging(cfg); err != nil {
		return warnings, err
	}
	if err := validateLimits(cfg); err != nil {
		return warnings, err
	}
	if err := validateShutdown(cfg); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func validateExpiry(cfg *Config, warnings *[]string) error {
	if cfg.DefaultExpireMS < 0 {
		return errors.New("default_expire_ms must be non-negative")
	}
	if cfg.DefaultExpireMS > MaxDurationMS {
		return fmt.Errorf("default_expire_ms must be at most %d", MaxDurationMS)
	}
	if cfg.SweepIntervalMS > MaxDurationMS {
		return fmt.Errorf("sweep_interval_ms must be at most %d", MaxDurationMS)
	}
	if cfg.SweepIntervalMS < -1 {
		return errors.New("sweep_interval_ms must be -1 (disabled), 0 (default) or positive")
	}
	if cfg.SweepIntervalMS == -1 && cfg.DefaultExpireMS > 0 {
		*warnings = append(*warnings, "sweep disabled with default_expire_ms set; unread keys stay in memory until accessed")
	}
	if time.Duration(cfg.SweepIntervalMS)*time.Millisecond > time.Hour {
		*warnings = append(*warnings, "sweep_interval_ms exceeds 1h")
	}
	return nil
}

func validateLogging(cfg *Config) error {
	if !oneOf(cfg.LogLevel, validLogLevels) {
		return fmt.Errorf("log_level %q must be one of %s", cfg.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if !oneOf(cfg.LogFormat, validLogFormats) {
		return fmt.Errorf("log_format %q must be one of %s", cfg.LogFormat, strings.Join(validLogFormats, ", "))
	}
	return nil
}

func validateLimits(cfg *Config) error {
	if cfg.Limits.MaxBodyBytes != nil && *cfg.Limits.MaxBodyBytes <= 0 {
		return errors.New("limits.max_body_bytes must be > 0")
	}
	if cfg.Limits.MaxHeaderBytes < 0 {
		return errors.New("limits.max_header_bytes must be non-negative")
	}
	if cfg.Limits.ReadHeaderTimeoutMS < 0 {
		return errors.New("limits.read_header_timeout_ms must be non-negative")
	}
	return nil
}

func validateShutdown(cfg *Config) error {
	if cfg.Shutdown.DrainMS < 0 {
		return errors.New("shutdown.drain_ms must be non-negative")
	}
	if cfg.Shutdown.GracefulTimeoutMS < 0 {
		return errors.New("shutdown.graceful_timeout_ms must be non-negative")
	}
	if cfg.Shutdown.ForceCloseMS < 0 {
		return errors.New("shutdown.force_close_ms must be non-negative")
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}

package runtime

import (
	"fmt"
	"time"

	"memoryhttpd/internal/config"
)

const (
	defaultDrain           = 500 * time.Millisecond
	defaultGracefulTimeout = 5 * time.Second
	defaultForceClose      = time.Second
)

// ShutdownConfig paces server shutdown: listeners close, the server waits
// Drain, then gives in-flight requests GracefulTimeout before forcing
// connections closed after ForceClose.
type ShutdownConfig struct {
	Drain           time.Duration
	GracefulTimeout time.Duration
	ForceClose      time.Duration
}

func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		Drain:           defaultDrain,
		GracefulTimeout: defaultGracefulTimeout,
		ForceClose:      defaultForceClose,
	}
}

func ShutdownFromConfig(cfg config.ShutdownConfig) (ShutdownConfig, error) {
	defaults := DefaultShutdownConfig()
	var err error
	shutdown := ShutdownConfig{}
	if shutdown.Drain, err = millis("drain_ms", cfg.DrainMS, defaults.Drain); err != nil {
		return ShutdownConfig{}, err
	}
	if shutdown.GracefulTimeout, err = millis("graceful_timeout_ms", cfg.GracefulTimeoutMS, defaults.GracefulTimeout); err != nil {
		return ShutdownConfig{}, err
	}
	if shutdown.ForceClose, err = millis("force_close_ms", cfg.ForceCloseMS, defaults.ForceClose); err != nil {
		return ShutdownConfig{}, err
	}
	return shutdown, nil
}

func ApplyShutdownDefaults(cfg ShutdownConfig) ShutdownConfig {
	defaults := DefaultShutdownConfig()
	if cfg.Drain <= 0 {
		cfg.Drain = defaults.Drain
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaults.GracefulTimeout
	}
	if cfg.ForceClose <= 0 {
		cfg.ForceClose = defaults.ForceClose
	}
	return cfg
}

func millis(field string, value int, fallback time.Duration) (time.Duration, error) {
	switch {
	case value < 0:
		return 0, fmt.Errorf("%s must be non-negative", field)
	case value == 0:
		return fallback, nil
	default:
		return time.Duration(value) * time.Millisecond, nil
	}
}

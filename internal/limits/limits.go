package limits

import (
	"fmt"
	"time"

	"memoryhttpd/internal/config"
)

const (
	defaultMaxHeaderBytes    = 64 * 1024
	defaultMaxBodyBytes      = 32 * 1024 * 1024
	defaultReadHeaderTimeout = 2 * time.Second
	defaultIdleTimeout       = 30 * time.Second
)

type Limits struct {
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

func Default() Limits {
	return Limits{
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		MaxBodyBytes:      defaultMaxBodyBytes,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
}

func FromConfig(cfg config.LimitsConfig) (Limits, error) {
	limits := Default()
	if cfg.MaxHeaderBytes > 0 {
		limits.MaxHeaderBytes = cfg.MaxHeaderBytes
	}
	if cfg.MaxBodyBytes != nil {
		limits.MaxBodyBytes = *cfg.MaxBodyBytes
	}
	if cfg.ReadHeaderTimeoutMS > 0 {
		limits.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutMS) * time.Millisecond
	} else if cfg.ReadHeaderTimeoutMS < 0 {
		return Limits{}, fmt.Errorf("read_header_timeout_ms must be positive")
	}
	limits.ReadTimeout = durationOrZero(cfg.ReadTimeoutMS)
	limits.WriteTimeout = durationOrZero(cfg.WriteTimeoutMS)
	if cfg.IdleTimeoutMS > 0 {
		limits.IdleTimeout = time.Duration(cfg.IdleTimeoutMS) * time.Millisecond
	}

	if limits.MaxBodyBytes <= 0 {
		return Limits{}, fmt.Errorf("max_body_bytes must be positive")
	}
	return limits, nil
}

func durationOrZero(milliseconds int) time.Duration {
	if milliseconds <= 0 {
		return 0
	}
	return time.Duration(milliseconds) * time.Millisecond
}

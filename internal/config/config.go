package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	ListenAddr      string         `json:"listen_addr"`
	MetricsAddr     string         `json:"metrics_addr"`
	DefaultExpireMS int64          `json:"default_expire_ms"`
	SweepIntervalMS int64          `json:"sweep_interval_ms"`
	AccessLog       *bool          `json:"access_log"`
	LogLevel        string         `json:"log_level"`
	LogFormat       string         `json:"log_format"`
	Limits          LimitsConfig   `json:"limits"`
	Shutdown        ShutdownConfig `json:"shutdown"`
}

type LimitsConfig struct {
	MaxHeaderBytes      int    `json:"max_header_bytes"`
	MaxBodyBytes        *int64 `json:"max_body_bytes"`
	ReadHeaderTimeoutMS int    `json:"read_header_timeout_ms"`
	ReadTimeoutMS       int    `json:"read_timeout_ms"`
	WriteTimeoutMS      int    `json:"write_timeout_ms"`
	IdleTimeoutMS       int    `json:"idle_timeout_ms"`
}

type ShutdownConfig struct {
	DrainMS           int `json:"drain_ms"`
	GracefulTimeoutMS int `json:"graceful_timeout_ms"`
	ForceCloseMS      int `json:"force_close_ms"`
}

const (
	DefaultListenAddr = "127.0.0.1:3000"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "auto"
)

func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
	}
}

func ParseJSON(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a JSON config file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) AccessLogEnabled() bool {
	return c.AccessLog == nil || *c.AccessLog
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"memoryhttpd/internal/api"
	"memoryhttpd/internal/config"
	"memoryhttpd/internal/kv"
	"memoryhttpd/internal/limits"
	"memoryhttpd/internal/obs"
	"memoryhttpd/internal/registry"
	"memoryhttpd/internal/runtime"
	"memoryhttpd/internal/server"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to a JSON config file",
		EnvVars: []string{"MEMORYHTTPD_CONFIG"},
	}
	addressFlag = &cli.StringFlag{
		Name:    "address",
		Usage:   "address to bind on, including the host (e.g. 0.0.0.0:3000)",
		EnvVars: []string{"MEMORYHTTPD_ADDRESS"},
	}
	metricsAddressFlag = &cli.StringFlag{
		Name:    "metrics-address",
		Usage:   "address for the Prometheus /metrics listener; empty disables it",
		EnvVars: []string{"MEMORYHTTPD_METRICS_ADDRESS"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Aliases: []string{"l"},
		Usage:   "minimal logging level (debug, info, warn, error)",
		EnvVars: []string{"MEMORYHTTPD_LOG_LEVEL"},
	}
	logFormatFlag = &cli.StringFlag{
		Name:    "log-format",
		Usage:   "log format (auto, text, json)",
		EnvVars: []string{"MEMORYHTTPD_LOG_FORMAT"},
	}
	defaultExpireFlag = &cli.Int64Flag{
		Name:    "default-expire-ms",
		Usage:   "expiration applied when a PUT has no X-Expire-ms header, in milliseconds (0 means never)",
		EnvVars: []string{"MEMORYHTTPD_DEFAULT_EXPIRE_MS"},
	}
	sweepIntervalFlag = &cli.Int64Flag{
		Name:    "sweep-interval-ms",
		Usage:   "period of the background expiration sweep in milliseconds (-1 disables it)",
		EnvVars: []string{"MEMORYHTTPD_SWEEP_INTERVAL_MS"},
	}
	noAccessLogFlag = &cli.BoolFlag{
		Name:    "no-access-log",
		Usage:   "disable the per-request JSON access log on stdout",
		EnvVars: []string{"MEMORYHTTPD_NO_ACCESS_LOG"},
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "memoryhttpd",
		Usage:     "in-memory key-value store over HTTP, namespaced by Host",
		ArgsUsage: "[address]",
		Flags: []cli.Flag{
			configFlag,
			addressFlag,
			metricsAddressFlag,
			logLevelFlag,
			logFormatFlag,
			defaultExpireFlag,
			sweepIntervalFlag,
			noAccessLogFlag,
		},
		Action: run,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers flags and the positional address over the config file.
func loadConfig(c *cli.Context) (*config.Config, []string, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet(addressFlag.Name) {
		cfg.ListenAddr = c.String(addressFlag.Name)
	}
	if c.Args().Present() {
		cfg.ListenAddr = c.Args().First()
	}
	if c.IsSet(metricsAddressFlag.Name) {
		cfg.MetricsAddr = c.String(metricsAddressFlag.Name)
	}
	if c.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = c.String(logLevelFlag.Name)
	}
	if c.IsSet(logFormatFlag.Name) {
		cfg.LogFormat = c.String(logFormatFlag.Name)
	}
	if c.IsSet(defaultExpireFlag.Name) {
		cfg.DefaultExpireMS = c.Int64(defaultExpireFlag.Name)
	}
	if c.IsSet(sweepIntervalFlag.Name) {
		cfg.SweepIntervalMS = c.Int64(sweepIntervalFlag.Name)
	}
	if c.Bool(noAccessLogFlag.Name) {
		disabled := false
		cfg.AccessLog = &disabled
	}

	warnings, err := config.Validate(cfg)
	if err != nil {
		return nil, warnings, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, warnings, nil
}

func run(c *cli.Context) error {
	cfg, warnings, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := obs.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	for _, warning := range warnings {
		logger.Warn("config warning", "warning", warning)
	}

	limitConfig, err := limits.FromConfig(cfg.Limits)
	if err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	shutdownConfig, err := runtime.ShutdownFromConfig(cfg.Shutdown)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	metrics := obs.NewMetrics()
	reg := registry.NewRegistry(sweepInterval(cfg.SweepIntervalMS), metrics.RecordSweep)
	metrics.TrackStats(func() (int, int) {
		stats := reg.Stats()
		return stats.Namespaces, stats.Entries
	})

	inflight := runtime.NewInflightTracker()
	handler := &api.Handler{
		Service:       kv.NewService(reg),
		Metrics:       metrics,
		Logger:        logger,
		Inflight:      inflight,
		MaxBodyBytes:  limitConfig.MaxBodyBytes,
		DefaultExpire: time.Duration(cfg.DefaultExpireMS) * time.Millisecond,
		AccessLog:     cfg.AccessLogEnabled(),
	}

	kvServer, err := server.Start(handler, cfg.ListenAddr, server.Options{
		Limits:   limitConfig,
		Shutdown: shutdownConfig,
		Inflight: inflight,
		Stoppers: []server.Stopper{reg},
		Logger:   logger,
	})
	if err != nil {
		reg.Close()
		return fmt.Errorf("start server: %w", err)
	}
	logger.Info("listening", "addr", "http://"+kvServer.Addr)

	var metricsServer *server.Server
	if cfg.MetricsAddr != "" {
		metricsServer, err = server.Start(metrics.Handler(), cfg.MetricsAddr, server.Options{
			Shutdown: shutdownConfig,
			Logger:   logger,
		})
		if err != nil {
			_ = kvServer.Shutdown()
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("metrics listening", "addr", "http://"+metricsServer.Addr+"/metrics")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	if err := server.ShutdownAll(kvServer, metricsServer); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func sweepInterval(ms int64) time.Duration {
	if ms < 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

// Command apiserver serves the claim annotation API over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/ClaimLens/internal/bootstrap"
	"github.com/turtacn/ClaimLens/internal/config"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/ClaimLens/internal/interfaces/http"
	"github.com/turtacn/ClaimLens/internal/interfaces/http/handlers"
	"github.com/turtacn/ClaimLens/internal/interfaces/http/middleware"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

const startupTimeout = time.Minute

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *envFile, *port); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string, port int) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	logger.Info("starting claimlens API server",
		logging.String("version", version),
		logging.String("addr", cfg.Server.Addr()))

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	rt, err := bootstrap.Open(ctx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("runtime close reported errors", logging.Err(err))
		}
	}()

	if configPath != "" {
		watchConfig(configPath, cfg, logger)
	}

	limit := middleware.DefaultRateLimitConfig()
	limit.RequestsPerSecond = cfg.Server.RateLimit.RequestsPerSecond
	limit.Burst = cfg.Server.RateLimit.Burst

	router := httpserver.NewRouter(httpserver.RouterConfig{
		ClaimHandler:   handlers.NewClaimHandler(rt.Service, logger, cfg.Server.MaxBodyBytes),
		HealthHandler:  handlers.NewHealthHandler(version, rt.HealthCheckers()...),
		Logger:         logger,
		Metrics:        rt.Metrics,
		MetricsHandler: rt.MetricsHandler,
		MetricsPath:    cfg.Monitoring.Prometheus.Path,
		RateLimit:      limit,
		Logging:        middleware.DefaultLoggingConfig(),
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	srv := httpserver.NewServer(httpserver.ServerConfig{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	}
	return srv.Stop(context.Background())
}

// watchConfig reports edits to the configuration file. Store and listener
// settings are read once at startup, so changes only take effect on restart.
func watchConfig(path string, current *config.Config, logger logging.Logger) {
	err := config.Watch(path, logger, func(next *config.Config) {
		logger.Warn("configuration file changed; restart to apply",
			logging.String("path", path),
			logging.String("log_level", next.Log.Level),
			logging.Bool("listener_changed", next.Server.Addr() != current.Server.Addr()))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}

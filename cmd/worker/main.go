// Command worker consumes claim submissions from Kafka and annotates them.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/ClaimLens/internal/bootstrap"
	"github.com/turtacn/ClaimLens/internal/config"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/redis"
	"github.com/turtacn/ClaimLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/ClaimLens/internal/interfaces/http"
	"github.com/turtacn/ClaimLens/internal/interfaces/http/handlers"
	"github.com/turtacn/ClaimLens/internal/interfaces/worker"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	startupTimeout  = time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	logger.Info("starting claimlens worker",
		logging.String("version", version),
		logging.String("group_id", cfg.Messaging.Kafka.Consumer.GroupID),
		logging.Duration("handler_timeout", cfg.Worker.HandlerTimeout))

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := bootstrap.EnsureTopics(startCtx, cfg, logger); err != nil {
		return err
	}
	rt, err := bootstrap.Open(startCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("runtime close reported errors", logging.Err(err))
		}
	}()

	consumer, err := kafka.NewConsumer(cfg.Messaging.Kafka.Consumer, logger.Named("kafka"))
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	var opts []worker.HandlerOption
	if cfg.Worker.LockClaims {
		locker := redis.NewLocker(rt.Redis, logger, cfg.Worker.LockTTL)
		opts = append(opts, worker.WithLock(worker.RedisLock(locker)))
	}
	if err := worker.Register(consumer, rt.Metrics, cfg.Worker.HandlerTimeout,
		worker.NewClaimSubmittedHandler(rt.Service, logger, opts...),
	); err != nil {
		return err
	}

	var health *httpserver.Server
	if cfg.Worker.HealthAddr != "" {
		health = httpserver.NewServer(httpserver.ServerConfig{
			Addr:         cfg.Worker.HealthAddr,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}, healthRouter(cfg, rt), logger.Named("health"))
		go func() {
			if err := health.Start(); err != nil {
				logger.Error("health server error", logging.Err(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	logger.Info("worker started", logging.String("topic", kafka.TopicClaimSubmitted))

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := consumer.Close(); err != nil {
		logger.Warn("consumer close failed", logging.Err(err))
	}
	if health != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := health.Stop(shutdownCtx); err != nil {
			logger.Warn("health server shutdown failed", logging.Err(err))
		}
	}
	logger.Info("worker stopped")
	return nil
}

func healthRouter(cfg *config.Config, rt *bootstrap.Runtime) http.Handler {
	h := handlers.NewHealthHandler(version, rt.HealthCheckers()...)
	r := chi.NewRouter()
	r.Get("/healthz", h.Liveness)
	r.Get("/readyz", h.Readiness)
	if rt.MetricsHandler != nil {
		r.Handle(cfg.Monitoring.Prometheus.Path, rt.MetricsHandler)
	}
	return r
}

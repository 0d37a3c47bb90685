// Package bootstrap opens the stores named in the configuration and wires
// them into the annotation service shared by the API server and the worker.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/turtacn/ClaimLens/internal/application/annotation"
	"github.com/turtacn/ClaimLens/internal/config"
	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/neo4j"
	graphrepo "github.com/turtacn/ClaimLens/internal/infrastructure/database/neo4j/repositories"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/postgres"
	pgrepo "github.com/turtacn/ClaimLens/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/redis"
	"github.com/turtacn/ClaimLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ClaimLens/internal/infrastructure/search/opensearch"
	"github.com/turtacn/ClaimLens/internal/infrastructure/storage/minio"
	"github.com/turtacn/ClaimLens/internal/intelligence/nlp"
	"github.com/turtacn/ClaimLens/internal/interfaces/http/handlers"
)

// Runtime holds the open stores and the service built on them.
type Runtime struct {
	Service annotation.Service
	Parser  *claim.Parser

	Metrics        *prometheus.ClaimMetrics
	MetricsHandler http.Handler

	Postgres   *postgres.Connection
	Redis      *redis.Client
	Neo4j      *neo4j.Driver
	OpenSearch *opensearch.Client
	MinIO      *minio.Client
	Producer   *kafka.Producer

	checkers []handlers.HealthChecker
	closers  []namedCloser
	logger   logging.Logger
}

type namedCloser struct {
	name string
	fn   func() error
}

func (rt *Runtime) onClose(name string, fn func() error) {
	rt.closers = append(rt.closers, namedCloser{name: name, fn: fn})
}

func (rt *Runtime) check(name string, fn func(ctx context.Context) error) {
	rt.checkers = append(rt.checkers, handlers.CheckFunc(name, fn))
}

// HealthCheckers returns one readiness check per open store.
func (rt *Runtime) HealthCheckers() []handlers.HealthChecker {
	return append([]handlers.HealthChecker(nil), rt.checkers...)
}

// Close releases the stores in reverse order of opening and joins their
// errors.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(); err != nil {
			rt.logger.Warn("close failed", logging.String("store", c.name), logging.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return stderrors.Join(errs...)
}

// NewMetrics builds the claim metrics when Prometheus is enabled. Both
// results are nil otherwise.
func NewMetrics(cfg config.PrometheusConfig, logger logging.Logger) (*prometheus.ClaimMetrics, http.Handler, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	collector, err := prometheus.NewMetricsCollector(cfg.CollectorConfig, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}
	return prometheus.NewClaimMetrics(collector), collector.Handler(), nil
}

// Open connects Postgres and every enabled optional store, then builds the
// annotation service. On failure everything opened so far is closed.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Runtime, error) {
	logger = logging.OrNop(logger)
	rt := &Runtime{logger: logger.Named("bootstrap")}
	if err := rt.open(ctx, cfg, logger); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, cfg *config.Config, logger logging.Logger) (err error) {
	if rt.Metrics, rt.MetricsHandler, err = NewMetrics(cfg.Monitoring.Prometheus, logger); err != nil {
		return err
	}
	if rt.Parser, err = nlp.NewClaimParser(cfg.NLP, logger); err != nil {
		return fmt.Errorf("parser: %w", err)
	}

	deps := annotation.Deps{Parser: rt.Parser, Metrics: rt.Metrics, Logger: logger}

	// ── Postgres ──────────────────────────────────────────────────────────────
	if rt.Postgres, err = postgres.NewConnection(cfg.Database.Postgres, logger.Named("postgres")); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	rt.onClose("postgres", rt.Postgres.Close)
	rt.check("postgres", rt.Postgres.HealthCheck)
	if cfg.Database.Postgres.AutoMigrate {
		if err = migrate(rt.Postgres, logger); err != nil {
			return err
		}
	}
	deps.Repository = pgrepo.NewPostgresClaimRepo(rt.Postgres, logger, rt.Metrics)

	// ── Optional stores ───────────────────────────────────────────────────────
	a := cfg.Annotation
	if a.EnableCache || cfg.Worker.LockClaims {
		if rt.Redis, err = redis.NewClient(&cfg.Database.Redis, logger.Named("redis")); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rt.onClose("redis", rt.Redis.Close)
		rt.check("redis", rt.Redis.Ping)
	}
	if a.EnableCache {
		deps.Cache = redis.NewAnnotationCache(rt.Redis, logger,
			redis.WithPrefix(a.CachePrefix),
			redis.WithTTL(a.CacheTTL),
			redis.WithLocalTTL(a.LocalCacheTTL),
			redis.WithCacheMetrics(rt.Metrics))
	}
	if a.EnableGraph {
		if rt.Neo4j, err = neo4j.NewDriver(cfg.Database.Neo4j, logger.Named("neo4j")); err != nil {
			return fmt.Errorf("neo4j: %w", err)
		}
		rt.onClose("neo4j", rt.Neo4j.Close)
		rt.check("neo4j", rt.Neo4j.HealthCheck)
		deps.Graph = graphrepo.NewClaimGraphRepo(rt.Neo4j, logger)
	}
	if a.EnableIndex {
		osCfg := cfg.Search.OpenSearch
		if rt.OpenSearch, err = opensearch.NewClient(osCfg.ClientConfig, logger.Named("opensearch")); err != nil {
			return fmt.Errorf("opensearch: %w", err)
		}
		rt.onClose("opensearch", rt.OpenSearch.Close)
		rt.check("opensearch", rt.OpenSearch.Ping)
		index := opensearch.NewClaimIndex(rt.OpenSearch,
			opensearch.IndexerConfig{BulkBatchSize: osCfg.BulkBatchSize, RefreshPolicy: osCfg.RefreshPolicy},
			opensearch.SearcherConfig{}, logger)
		if err = index.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("opensearch: %w", err)
		}
		deps.Index = index
	}
	if a.EnableArchive {
		mcfg := cfg.Storage.MinIO
		if rt.MinIO, err = minio.NewClient(&mcfg, logger.Named("minio")); err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		rt.onClose("minio", rt.MinIO.Close)
		rt.check("minio", rt.MinIO.HealthCheck)
		deps.Archive = minio.NewArchiveRepository(rt.MinIO, logger)
	}
	if a.EnableEvents {
		if rt.Producer, err = kafka.NewProducer(cfg.Messaging.Kafka.Producer, logger.Named("kafka")); err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		rt.onClose("kafka", rt.Producer.Close)
		deps.Events = rt.Producer
	}

	if rt.Service, err = annotation.NewService(a.Config, deps); err != nil {
		return err
	}
	rt.logger.Info("runtime ready",
		logging.Bool("cache", deps.Cache != nil),
		logging.Bool("graph", deps.Graph != nil),
		logging.Bool("index", deps.Index != nil),
		logging.Bool("archive", deps.Archive != nil),
		logging.Bool("events", deps.Events != nil))
	return nil
}

func migrate(conn *postgres.Connection, logger logging.Logger) error {
	m, err := postgres.NewMigrator(conn.DB(), logger.Named("migrate"))
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

// EnsureTopics creates the claim topics when messaging.kafka.topics.auto_create
// is set.
func EnsureTopics(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	k := cfg.Messaging.Kafka
	if !k.Topics.AutoCreate {
		return nil
	}
	tm, err := kafka.NewTopicManager(ctx, k.Producer.Brokers, k.Producer.Security, logger)
	if err != nil {
		return fmt.Errorf("kafka topics: %w", err)
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(k.Topics.ReplicationFactor))
}

// Package config defines the configuration tree of the ClaimLens services.
// Infrastructure sections reuse the config types of the packages they
// configure; this package adds the process-level sections and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/ClaimLens/internal/application/annotation"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/neo4j"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/postgres"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/redis"
	"github.com/turtacn/ClaimLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ClaimLens/internal/infrastructure/search/opensearch"
	"github.com/turtacn/ClaimLens/internal/infrastructure/storage/minio"
	"github.com/turtacn/ClaimLens/internal/intelligence/nlp"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host"`
	Port            int             `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64           `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout" yaml:"request_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig limits requests per client address. A zero rate disables
// limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AnnotationConfig configures the annotation service and which optional
// stores it writes to.
type AnnotationConfig struct {
	annotation.Config `mapstructure:",squash" yaml:",inline"`

	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	LocalCacheTTL time.Duration `mapstructure:"local_cache_ttl" yaml:"local_cache_ttl"`
	CachePrefix   string        `mapstructure:"cache_prefix" yaml:"cache_prefix"`

	EnableCache   bool `mapstructure:"enable_cache" yaml:"enable_cache"`
	EnableGraph   bool `mapstructure:"enable_graph" yaml:"enable_graph"`
	EnableIndex   bool `mapstructure:"enable_index" yaml:"enable_index"`
	EnableArchive bool `mapstructure:"enable_archive" yaml:"enable_archive"`
	EnableEvents  bool `mapstructure:"enable_events" yaml:"enable_events"`
}

type DatabaseConfig struct {
	Postgres postgres.PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Redis    redis.RedisConfig       `mapstructure:"redis" yaml:"redis"`
	Neo4j    neo4j.Neo4jConfig       `mapstructure:"neo4j" yaml:"neo4j"`
}

type OpenSearchConfig struct {
	opensearch.ClientConfig `mapstructure:",squash" yaml:",inline"`

	BulkBatchSize int    `mapstructure:"bulk_batch_size" yaml:"bulk_batch_size"`
	RefreshPolicy string `mapstructure:"refresh_policy" yaml:"refresh_policy"`
}

type SearchConfig struct {
	OpenSearch OpenSearchConfig `mapstructure:"opensearch" yaml:"opensearch"`
}

type StorageConfig struct {
	MinIO minio.MinIOConfig `mapstructure:"minio" yaml:"minio"`
}

// TopicsConfig controls topic provisioning at startup.
type TopicsConfig struct {
	AutoCreate        bool `mapstructure:"auto_create" yaml:"auto_create"`
	ReplicationFactor int  `mapstructure:"replication_factor" yaml:"replication_factor"`
}

type KafkaConfig struct {
	Producer kafka.ProducerConfig `mapstructure:"producer" yaml:"producer"`
	Consumer kafka.ConsumerConfig `mapstructure:"consumer" yaml:"consumer"`
	Topics   TopicsConfig         `mapstructure:"topics" yaml:"topics"`
}

type MessagingConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

// WorkerConfig tunes the claim.submitted consumer process.
type WorkerConfig struct {
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" yaml:"handler_timeout"`
	// HealthAddr serves /healthz, /readyz and metrics. Empty disables it.
	HealthAddr string `mapstructure:"health_addr" yaml:"health_addr"`
	// LockClaims takes a Redis lock per claim fingerprint while annotating.
	LockClaims bool          `mapstructure:"lock_claims" yaml:"lock_claims"`
	LockTTL    time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

type PrometheusConfig struct {
	prometheus.CollectorConfig `mapstructure:",squash" yaml:",inline"`

	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus" yaml:"prometheus"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root of the configuration tree shared by the CLI, the API
// server and the worker.
type Config struct {
	Server     ServerConfig      `mapstructure:"server" yaml:"server"`
	Log        logging.LogConfig `mapstructure:"log" yaml:"log"`
	NLP        nlp.Config        `mapstructure:"nlp" yaml:"nlp"`
	Annotation AnnotationConfig  `mapstructure:"annotation" yaml:"annotation"`
	Database   DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Search     SearchConfig      `mapstructure:"search" yaml:"search"`
	Storage    StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Messaging  MessagingConfig   `mapstructure:"messaging" yaml:"messaging"`
	Worker     WorkerConfig      `mapstructure:"worker" yaml:"worker"`
	Monitoring MonitoringConfig  `mapstructure:"monitoring" yaml:"monitoring"`
}

// Validate checks the fully defaulted configuration and returns the first
// problem found. Sections of disabled stores are not checked.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("config: server.max_body_bytes must not be negative")
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 || c.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("config: server.rate_limit values must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Annotation.Workers < 1 {
		return fmt.Errorf("config: annotation.workers must be >= 1, got %d", c.Annotation.Workers)
	}

	pg := c.Database.Postgres
	if pg.Host == "" {
		return fmt.Errorf("config: database.postgres.host is required")
	}
	if pg.Port < 1 || pg.Port > 65535 {
		return fmt.Errorf("config: database.postgres.port %d is out of range [1, 65535]", pg.Port)
	}
	if pg.Database == "" {
		return fmt.Errorf("config: database.postgres.database is required")
	}
	if pg.Username == "" {
		return fmt.Errorf("config: database.postgres.username is required")
	}

	if c.Annotation.EnableCache {
		r := c.Database.Redis
		if r.Addr == "" && len(r.ClusterAddrs) == 0 && len(r.SentinelAddrs) == 0 {
			return fmt.Errorf("config: database.redis.addr is required when the annotation cache is enabled")
		}
		if r.DB < 0 {
			return fmt.Errorf("config: database.redis.db must be >= 0, got %d", r.DB)
		}
	}
	if c.Annotation.EnableGraph && c.Database.Neo4j.URI == "" {
		return fmt.Errorf("config: database.neo4j.uri is required when the claim graph is enabled")
	}
	if c.Annotation.EnableIndex && len(c.Search.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: search.opensearch.addresses is required when phrase search is enabled")
	}
	if c.Annotation.EnableArchive {
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("config: storage.minio.endpoint and bucket are required when the archive is enabled")
		}
	}
	if c.Annotation.EnableEvents {
		if err := kafka.ValidateProducerConfig(c.Messaging.Kafka.Producer); err != nil {
			return fmt.Errorf("config: messaging.kafka.producer: %w", err)
		}
	}

	if c.Monitoring.Prometheus.Enabled && !strings.HasPrefix(c.Monitoring.Prometheus.Path, "/") {
		return fmt.Errorf("config: monitoring.prometheus.path %q must start with /", c.Monitoring.Prometheus.Path)
	}
	return nil
}

// ValidateWorker checks the sections only the worker needs.
func (c *Config) ValidateWorker() error {
	if err := kafka.ValidateConsumerConfig(c.Messaging.Kafka.Consumer); err != nil {
		return fmt.Errorf("config: messaging.kafka.consumer: %w", err)
	}
	if err := kafka.ValidateProducerConfig(c.Messaging.Kafka.Producer); err != nil {
		return fmt.Errorf("config: messaging.kafka.producer: %w", err)
	}
	if c.Worker.HandlerTimeout <= 0 {
		return fmt.Errorf("config: worker.handler_timeout must be positive")
	}
	if c.Worker.LockClaims {
		r := c.Database.Redis
		if r.Addr == "" && len(r.ClusterAddrs) == 0 && len(r.SentinelAddrs) == 0 {
			return fmt.Errorf("config: database.redis.addr is required when worker.lock_claims is set")
		}
	}
	return nil
}

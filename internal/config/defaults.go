package config

import (
	"time"

	"github.com/turtacn/ClaimLens/internal/application/annotation"
	"github.com/turtacn/ClaimLens/internal/infrastructure/messaging/kafka"
)

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownTimeout = 15 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultPostgresHost = "localhost"
	DefaultPostgresPort = 5432
	DefaultPostgresDB   = "claimlens"
	DefaultPostgresUser = "claimlens"

	DefaultRedisAddr   = "localhost:6379"
	DefaultCachePrefix = "claimlens:annotation:"
	DefaultCacheTTL    = 24 * time.Hour

	DefaultNeo4jURI = "bolt://localhost:7687"

	DefaultOpenSearchAddr  = "http://localhost:9200"
	DefaultOpenSearchIndex = "claims"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "claimlens"
	DefaultMinIOPrefix   = "claims/"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "claimlens-worker"

	DefaultHandlerTimeout = 2 * time.Minute
	DefaultWorkerHealth   = ":8081"

	DefaultMetricsNamespace = "claimlens"
	DefaultMetricsPath      = "/metrics"
)

// DefaultConfig returns a configuration with every default applied. Stores
// other than Postgres start disabled.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Monitoring.Prometheus.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg. Values already set win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	s := &cfg.Server
	if s.Host == "" {
		s.Host = DefaultServerHost
	}
	if s.Port == 0 {
		s.Port = DefaultServerPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 15 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 60 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 30 * time.Second
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Annotation ────────────────────────────────────────────────────────────
	a := &cfg.Annotation
	if a.Workers == 0 {
		a.Workers = annotation.DefaultWorkers
	}
	if a.Source == "" {
		a.Source = annotation.DefaultSource
	}
	if a.CacheTTL == 0 {
		a.CacheTTL = DefaultCacheTTL
	}
	if a.LocalCacheTTL == 0 {
		a.LocalCacheTTL = time.Minute
	}
	if a.CachePrefix == "" {
		a.CachePrefix = DefaultCachePrefix
	}

	// ── Database ──────────────────────────────────────────────────────────────
	pg := &cfg.Database.Postgres
	if pg.Host == "" {
		pg.Host = DefaultPostgresHost
	}
	if pg.Port == 0 {
		pg.Port = DefaultPostgresPort
	}
	if pg.Database == "" {
		pg.Database = DefaultPostgresDB
	}
	if pg.Username == "" {
		pg.Username = DefaultPostgresUser
	}
	if pg.SSLMode == "" {
		pg.SSLMode = "disable"
	}
	if pg.MaxOpenConns == 0 {
		pg.MaxOpenConns = 25
	}
	if pg.MaxIdleConns == 0 {
		pg.MaxIdleConns = 5
	}
	if pg.ConnMaxLifetime == 0 {
		pg.ConnMaxLifetime = 30 * time.Minute
	}

	r := &cfg.Database.Redis
	if r.Mode == "" {
		r.Mode = "standalone"
	}
	if r.Addr == "" && r.Mode == "standalone" {
		r.Addr = DefaultRedisAddr
	}
	if r.PoolSize == 0 {
		r.PoolSize = 10
	}

	n := &cfg.Database.Neo4j
	if n.URI == "" {
		n.URI = DefaultNeo4jURI
	}
	if n.Username == "" {
		n.Username = "neo4j"
	}
	if n.Database == "" {
		n.Database = "neo4j"
	}

	// ── Search ────────────────────────────────────────────────────────────────
	sc := &cfg.Search.OpenSearch
	if len(sc.Addresses) == 0 {
		sc.Addresses = []string{DefaultOpenSearchAddr}
	}
	if sc.Index == "" {
		sc.Index = DefaultOpenSearchIndex
	}
	if sc.BulkBatchSize == 0 {
		sc.BulkBatchSize = 500
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	m := &cfg.Storage.MinIO
	if m.Endpoint == "" {
		m.Endpoint = DefaultMinIOEndpoint
	}
	if m.Bucket == "" {
		m.Bucket = DefaultMinIOBucket
	}
	if m.Prefix == "" {
		m.Prefix = DefaultMinIOPrefix
	}

	// ── Messaging ─────────────────────────────────────────────────────────────
	k := &cfg.Messaging.Kafka
	if len(k.Producer.Brokers) == 0 {
		k.Producer.Brokers = []string{DefaultKafkaBroker}
	}
	if k.Producer.Acks == "" {
		k.Producer.Acks = "all"
	}
	if len(k.Consumer.Brokers) == 0 {
		k.Consumer.Brokers = append([]string(nil), k.Producer.Brokers...)
	}
	if k.Consumer.GroupID == "" {
		k.Consumer.GroupID = DefaultKafkaGroupID
	}
	if len(k.Consumer.Topics) == 0 {
		k.Consumer.Topics = []string{kafka.TopicClaimSubmitted}
	}
	if k.Consumer.AutoOffsetReset == "" {
		k.Consumer.AutoOffsetReset = "earliest"
	}
	if k.Consumer.Retry.DeadLetterTopic == "" {
		k.Consumer.Retry.DeadLetterTopic = kafka.TopicDeadLetterClaim
	}
	if k.Topics.ReplicationFactor == 0 {
		k.Topics.ReplicationFactor = 1
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	w := &cfg.Worker
	if w.HandlerTimeout == 0 {
		w.HandlerTimeout = DefaultHandlerTimeout
	}
	if w.HealthAddr == "" {
		w.HealthAddr = DefaultWorkerHealth
	}
	if w.LockTTL == 0 {
		w.LockTTL = 2 * DefaultHandlerTimeout
	}

	// ── Monitoring ────────────────────────────────────────────────────────────
	p := &cfg.Monitoring.Prometheus
	if p.Namespace == "" {
		p.Namespace = DefaultMetricsNamespace
	}
	if p.Path == "" {
		p.Path = DefaultMetricsPath
	}
}

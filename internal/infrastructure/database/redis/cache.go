package redis

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "cache serialization failed")
)

const (
	DefaultCachePrefix = "claimlens:annotation:"
	DefaultCacheTTL    = 24 * time.Hour
	DefaultLocalTTL    = 5 * time.Minute
)

// AnnotationCache is a two-tier read-through cache: an in-process go-cache
// in front of redis. Either tier may be absent. Values are stored as JSON.
type AnnotationCache struct {
	client   *Client
	local    *gocache.Cache
	logger   logging.Logger
	metrics  *prometheus.ClaimMetrics
	prefix   string
	ttl      time.Duration
	localTTL time.Duration
}

type CacheOption func(*AnnotationCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *AnnotationCache) { c.prefix = prefix }
}

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *AnnotationCache) { c.ttl = ttl }
}

// WithLocalTTL sets the in-process tier TTL; zero or negative disables it.
func WithLocalTTL(ttl time.Duration) CacheOption {
	return func(c *AnnotationCache) { c.localTTL = ttl }
}

func WithCacheMetrics(m *prometheus.ClaimMetrics) CacheOption {
	return func(c *AnnotationCache) { c.metrics = m }
}

// NewAnnotationCache builds the cache. client may be nil for a local-only cache.
func NewAnnotationCache(client *Client, log logging.Logger, opts ...CacheOption) *AnnotationCache {
	c := &AnnotationCache{
		client:   client,
		logger:   logging.OrNop(log),
		prefix:   DefaultCachePrefix,
		ttl:      DefaultCacheTTL,
		localTTL: DefaultLocalTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.localTTL > 0 {
		c.local = gocache.New(c.localTTL, 2*c.localTTL)
	}
	return c
}

func (c *AnnotationCache) fullKey(key string) string { return c.prefix + key }

// Get decodes the cached value for key into dest. It returns ErrCacheMiss
// when neither tier holds the key.
func (c *AnnotationCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.getBytes(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *AnnotationCache) getBytes(ctx context.Context, key string) ([]byte, error) {
	full := c.fullKey(key)
	if c.local != nil {
		if v, ok := c.local.Get(full); ok {
			prometheus.RecordCacheAccess(c.metrics, "local", true)
			return v.([]byte), nil
		}
		prometheus.RecordCacheAccess(c.metrics, "local", false)
	}
	if c.client == nil {
		return nil, ErrCacheMiss
	}

	s, err := c.client.Get(ctx, full).Result()
	if err == redis.Nil {
		prometheus.RecordCacheAccess(c.metrics, "redis", false)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "cache get")
	}
	prometheus.RecordCacheAccess(c.metrics, "redis", true)

	data := []byte(s)
	if c.local != nil {
		c.local.SetDefault(full, data)
	}
	return data, nil
}

// Set stores value in both tiers.
func (c *AnnotationCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return c.setBytes(ctx, key, data)
}

func (c *AnnotationCache) setBytes(ctx context.Context, key string, data []byte) error {
	full := c.fullKey(key)
	if c.local != nil {
		c.local.SetDefault(full, data)
	}
	if c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, full, string(data), c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache set")
	}
	return nil
}

func (c *AnnotationCache) Delete(ctx context.Context, key string) error {
	full := c.fullKey(key)
	if c.local != nil {
		c.local.Delete(full)
	}
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, full).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache delete")
	}
	return nil
}

func (c *AnnotationCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx)
}

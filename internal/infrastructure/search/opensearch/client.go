package opensearch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

var (
	ErrInvalidConfig    = errors.New(errors.ErrCodeValidation, "invalid opensearch configuration")
	ErrConnectionFailed = errors.New(errors.ErrCodeSearchError, "opensearch connection failed")
)

// ClientConfig holds the configuration for the OpenSearch client.
type ClientConfig struct {
	Addresses           []string      `mapstructure:"addresses" yaml:"addresses"`
	Username            string        `mapstructure:"username" yaml:"username"`
	Password            string        `mapstructure:"password" yaml:"password"`
	Index               string        `mapstructure:"index" yaml:"index"`
	TLSEnabled          bool          `mapstructure:"tls_enabled" yaml:"tls_enabled"`
	TLSCAFile           string        `mapstructure:"tls_ca_file" yaml:"tls_ca_file"`
	MaxRetries          int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" yaml:"health_check_interval"`
}

// Client wraps the OpenSearch client with a background health check.
type Client struct {
	client  *opensearchapi.Client
	config  ClientConfig
	logger  logging.Logger
	healthy atomic.Bool
	cancel  context.CancelFunc
}

// NewClient validates cfg, pings the cluster and starts the health check loop.
func NewClient(cfg ClientConfig, logger logging.Logger) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg = applyDefaults(cfg)

	transport := &http.Transport{
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}
	if cfg.TLSEnabled {
		tlsCfg, err := buildTLSConfig(cfg.TLSCAFile)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsCfg
	}

	backoff := cfg.RetryBackoff
	osClient, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:     cfg.Addresses,
			Username:      cfg.Username,
			Password:      cfg.Password,
			MaxRetries:    cfg.MaxRetries,
			RetryBackoff:  func(attempt int) time.Duration { return time.Duration(attempt) * backoff },
			RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
			Transport:     transport,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchError, "failed to create opensearch client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		client: osClient,
		config: cfg,
		logger: logging.OrNop(logger),
		cancel: cancel,
	}
	if err := c.Ping(ctx); err != nil {
		cancel()
		return nil, ErrConnectionFailed.WithCause(err)
	}
	go c.healthLoop(ctx)

	c.logger.Info("connected to opensearch", logging.Strings("addresses", cfg.Addresses))
	return c, nil
}

func applyDefaults(cfg ClientConfig) ClientConfig {
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 10
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	return cfg
}

func buildTLSConfig(caFile string) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "read opensearch ca file")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, ErrInvalidConfig.WithDetail("no certificates in " + caFile)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

// Ping checks the connection to OpenSearch and updates the health flag.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(ctx, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err == nil && resp != nil && resp.IsError() {
		err = errors.Newf(errors.ErrCodeSearchError, "opensearch ping returned status %d", resp.StatusCode)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("opensearch ping failed", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeSearchError, "opensearch ping failed")
	}
	c.healthy.Store(true)
	return nil
}

func (c *Client) IsHealthy() bool { return c.healthy.Load() }

// Index is the configured claim index name.
func (c *Client) Index() string { return c.config.Index }

func (c *Client) api() *opensearchapi.Client { return c.client }

// Close stops the health check loop.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info("opensearch client closed")
	return nil
}

func (c *Client) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev := c.healthy.Load()
			err := c.Ping(ctx)
			switch curr := c.healthy.Load(); {
			case prev && !curr:
				c.logger.Error("opensearch cluster became unhealthy", logging.Err(err))
			case !prev && curr:
				c.logger.Info("opensearch cluster recovered")
			}
		}
	}
}

// ValidateConfig rejects configurations NewClient cannot use.
func ValidateConfig(cfg ClientConfig) error {
	if len(cfg.Addresses) == 0 {
		return ErrInvalidConfig.WithDetail("at least one address is required")
	}
	if cfg.MaxRetries < 0 {
		return ErrInvalidConfig.WithDetail("max_retries must be >= 0")
	}
	if cfg.RequestTimeout < 0 {
		return ErrInvalidConfig.WithDetail("request_timeout must be >= 0")
	}
	return nil
}

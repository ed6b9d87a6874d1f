package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Sternrassler/user-service/pkg/backoff"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NoExpiry is returned by TTL for keys that exist without an expiry.
const NoExpiry time.Duration = -1

// Defaults applied by DefaultConfig.
const (
	DefaultPort               = 6379
	DefaultDialTimeout        = 5 * time.Second
	DefaultMaxConnectAttempts = 3
	DefaultScanCount          = 100
)

// Config holds the cache client configuration.
type Config struct {
	// Host is the primary (writer) address.
	Host string

	// ReaderHost is the replica used for Get and TTL. Defaults to Host.
	ReaderHost string

	Port     int
	Password string
	DB       int

	// Prefix namespaces every key. It must not be empty.
	Prefix string

	// DialTimeout bounds the connection handshake.
	DialTimeout time.Duration

	// MaxConnectAttempts is the number of dials before a slot gives up.
	MaxConnectAttempts int

	// Reconnect yields the wait between dial attempts.
	Reconnect backoff.Policy

	// ScanCount is the COUNT hint for pattern deletes.
	ScanCount int

	// Dial overrides connection creation (for testing).
	Dial DialFunc
}

// DefaultConfig returns the default configuration for a local store.
func DefaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               DefaultPort,
		Prefix:             DefaultPrefix,
		DialTimeout:        DefaultDialTimeout,
		MaxConnectAttempts: DefaultMaxConnectAttempts,
		Reconnect:          backoff.CappedLinear{Step: 200 * time.Millisecond, Max: time.Second},
		ScanCount:          DefaultScanCount,
	}
}

// Client is a namespaced get/set facade over a writer and a reader
// connection. Store failures never reach the caller: reads report a miss
// and writes are logged and dropped.
type Client struct {
	prefix    string
	scanCount int
	writer    *slot
	reader    *slot
	logger    zerolog.Logger
}

// New creates a cache client. No connection is made until first use.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid redis port %d", cfg.Port)
	}
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("key prefix is required")
	}
	if cfg.MaxConnectAttempts < 1 {
		return nil, fmt.Errorf("max_connect_attempts must be >= 1 (got %d)", cfg.MaxConnectAttempts)
	}
	if cfg.Reconnect == nil {
		return nil, fmt.Errorf("reconnect policy is required")
	}

	readerHost := cfg.ReaderHost
	if readerHost == "" {
		readerHost = cfg.Host
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	scanCount := cfg.ScanCount
	if scanCount <= 0 {
		scanCount = DefaultScanCount
	}
	dial := cfg.Dial
	if dial == nil {
		dial = dialRedis
	}

	logger := logging.NewLogger("cache")
	newSlot := func(name, host string) *slot {
		return &slot{
			name: name,
			opts: &redis.Options{
				Addr:        net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
				Password:    cfg.Password,
				DB:          cfg.DB,
				DialTimeout: dialTimeout,
				ClientName:  "user-service-" + name,
			},
			dial:        dial,
			reconnect:   cfg.Reconnect,
			maxAttempts: cfg.MaxConnectAttempts,
			logger:      logger,
		}
	}

	return &Client{
		prefix:    cfg.Prefix,
		scanCount: scanCount,
		writer:    newSlot("writer", cfg.Host),
		reader:    newSlot("reader", readerHost),
		logger:    logger,
	}, nil
}

// Get returns the value stored under key. The reader connection is closed
// before Get returns.
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.get(ctx, key)
	return c.readResult(ctx, "get", key, val, err)
}

// GetDel returns the value stored under key and removes it. It runs on the
// writer connection, which is closed before GetDel returns.
func (c *Client) GetDel(ctx context.Context, key string) (string, bool) {
	val, err := c.getDel(ctx, key)
	return c.readResult(ctx, "getdel", key, val, err)
}

// Set stores value under key. A positive ttl sets an expiry with millisecond
// precision. Failures are logged only.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := c.set(ctx, key, value, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("key", c.namespaced(key)).Msg("Cache set failed")
		return
	}
	logging.Ctx(ctx).Debug().Str("key", c.namespaced(key)).Dur("ttl", ttl).Msg("Cache key set")
}

// Delete removes key. Failures are logged only.
func (c *Client) Delete(ctx context.Context, key string) {
	n, err := c.del(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("key", c.namespaced(key)).Msg("Cache delete failed")
		return
	}
	logging.Ctx(ctx).Debug().Str("key", c.namespaced(key)).Int64("deleted", n).Msg("Cache key deleted")
}

// DeleteByPattern removes every key matching the glob pattern within the
// namespace and returns how many were removed (0 on failure).
func (c *Client) DeleteByPattern(ctx context.Context, pattern string) int64 {
	n, err := c.deleteByPattern(ctx, pattern)
	if err != nil {
		CacheErrors.WithLabelValues("delete_pattern").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("pattern", c.namespaced(pattern)).Msg("Cache pattern delete failed")
		return 0
	}
	CacheKeysDeleted.Add(float64(n))
	logging.Ctx(ctx).Debug().Str("pattern", c.namespaced(pattern)).Int64("deleted", n).Msg("Cache pattern deleted")
	return n
}

// TTL returns the remaining lifetime of key, or NoExpiry for a persistent
// key. It reports false when the key does not exist or the store failed.
// The reader connection is closed before TTL returns.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, bool) {
	ttl, err := c.ttl(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("ttl").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("key", c.namespaced(key)).Msg("Cache ttl failed")
		return 0, false
	}
	switch {
	case ttl == -2:
		return 0, false
	case ttl == -1:
		return NoExpiry, true
	case ttl == 0:
		return 0, false
	}
	return ttl, true
}

// Close quits both connections. It is safe to call repeatedly; the client
// reconnects lazily if used afterwards.
func (c *Client) Close() {
	c.logger.Info().Msg("Closing cache connections")
	for _, s := range []*slot{c.writer, c.reader} {
		closed := s.close()
		c.logger.Debug().Str("slot", s.name).Bool("was_open", closed).Msg("Cache slot closed")
	}
}

func (c *Client) readResult(ctx context.Context, op, key, val string, err error) (string, bool) {
	logger := logging.Ctx(ctx)
	switch {
	case errors.Is(err, redis.Nil) || (err == nil && val == ""):
		CacheMisses.WithLabelValues(op).Inc()
		logger.Debug().Str("key", c.namespaced(key)).Str("operation", op).Msg("Cache miss")
		return "", false
	case err != nil:
		CacheErrors.WithLabelValues(op).Inc()
		logger.Error().Err(err).Str("key", c.namespaced(key)).Str("operation", op).Msg("Cache read failed")
		return "", false
	}
	CacheHits.WithLabelValues(op).Inc()
	logger.Debug().Str("key", c.namespaced(key)).Str("operation", op).Msg("Cache hit")
	return val, true
}

// The methods below are the internal (value, error) surface. Reads release
// their connection with closeAfter set.

func (c *Client) get(ctx context.Context, key string) (val string, err error) {
	l, err := c.reader.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer func() { c.reader.release(l, true, err) }()

	return l.conn.Get(ctx, c.namespaced(key)).Result()
}

func (c *Client) getDel(ctx context.Context, key string) (val string, err error) {
	l, err := c.writer.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer func() { c.writer.release(l, true, err) }()

	return l.conn.GetDel(ctx, c.namespaced(key)).Result()
}

func (c *Client) ttl(ctx context.Context, key string) (ttl time.Duration, err error) {
	l, err := c.reader.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { c.reader.release(l, true, err) }()

	return l.conn.TTL(ctx, c.namespaced(key)).Result()
}

func (c *Client) set(ctx context.Context, key string, value any, ttl time.Duration) (err error) {
	l, err := c.writer.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { c.writer.release(l, false, err) }()

	if ttl < 0 {
		ttl = 0
	}
	return l.conn.Set(ctx, c.namespaced(key), value, ttl).Err()
}

func (c *Client) del(ctx context.Context, key string) (n int64, err error) {
	l, err := c.writer.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { c.writer.release(l, false, err) }()

	return l.conn.Del(ctx, c.namespaced(key)).Result()
}

func (c *Client) deleteByPattern(ctx context.Context, pattern string) (n int64, err error) {
	l, err := c.writer.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { c.writer.release(l, false, err) }()

	return deleteByPatternScript.Run(ctx, l.conn, nil, c.namespaced(pattern), c.scanCount).Int64()
}

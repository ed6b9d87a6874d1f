package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_allowed_total",
		Help: "Total number of requests admitted by the rate limiter",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_blocks_total",
		Help: "Total number of requests rejected by the rate limiter",
	})

	rateLimitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_store_errors_total",
		Help: "Total number of counter store failures (requests admitted)",
	})
)

// Defaults applied by DefaultConfig.
const (
	DefaultLimit     = 3000
	DefaultWindow    = time.Minute
	DefaultKeyPrefix = "ratelimit"
)

// Counter increments the hit count of a window key and returns the new value.
// The key must expire after window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter is a Counter using INCR and PEXPIRE in one pipeline.
type RedisCounter struct {
	redis redis.Cmdable
}

// NewRedisCounter creates a Counter on top of a go-redis client.
func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{redis: client}
}

// Incr implements Counter.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment rate limit counter: %w", err)
	}
	return incr.Val(), nil
}

// Config holds the limiter configuration.
type Config struct {
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// DefaultConfig returns 3000 requests per minute.
func DefaultConfig() Config {
	return Config{
		Limit:     DefaultLimit,
		Window:    DefaultWindow,
		KeyPrefix: DefaultKeyPrefix,
	}
}

// Limiter admits up to Limit requests per client per fixed window.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
	prefix  string
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a limiter.
func New(counter Counter, cfg Config) (*Limiter, error) {
	if counter == nil {
		return nil, fmt.Errorf("counter is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive (got %d)", cfg.Limit)
	}
	if cfg.Window < time.Millisecond {
		return nil, fmt.Errorf("window must be at least 1ms (got %s)", cfg.Window)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &Limiter{
		counter: counter,
		limit:   cfg.Limit,
		window:  cfg.Window,
		prefix:  prefix,
		logger:  logging.NewLogger("ratelimit"),
		now:     time.Now,
	}, nil
}

// Allow counts one request for client. When the store fails the request is
// admitted and the error is logged.
func (l *Limiter) Allow(ctx context.Context, client string) Decision {
	now := l.now()
	windowMs := l.window.Milliseconds()
	index := now.UnixMilli() / windowMs
	resetAt := time.UnixMilli((index + 1) * windowMs)
	key := fmt.Sprintf("%s:%s:%d", l.prefix, client, index)

	count, err := l.counter.Incr(ctx, key, l.window)
	if err != nil {
		rateLimitErrorsTotal.Inc()
		l.logger.Warn().
			Err(err).
			Str("client", client).
			Msg("Rate limit store unavailable - admitting request")
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetAt: resetAt}
	}

	d := decide(count, l.limit, resetAt)
	if !d.Allowed {
		rateLimitBlocksTotal.Inc()
		l.logger.Warn().
			Str("client", client).
			Int64("count", count).
			Dur("retry_after", d.RetryAfter()).
			Msg("Rate limit exceeded - blocking request")
		return d
	}

	rateLimitAllowedTotal.Inc()
	return d
}

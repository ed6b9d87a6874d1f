package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Sternrassler/user-service/pkg/logging"
)

// Store is the value surface of Client. Services take it as a dependency so
// tests can substitute an in-memory implementation.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
	DeleteByPattern(ctx context.Context, pattern string) int64
}

var _ Store = (*Client)(nil)

// GetJSON reads key and decodes it into a T. Undecodable values count as a
// miss.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool) {
	var out T
	raw, ok := s.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Cached value is not valid JSON")
		return out, false
	}
	return out, true
}

// SetJSON encodes v and stores it under key.
func SetJSON[T any](ctx context.Context, s Store, key string, v T, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("key", key).Msg("Marshal cache value failed")
		return
	}
	s.Set(ctx, key, data, ttl)
}

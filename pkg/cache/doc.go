// Package cache provides a namespaced Redis cache for the user service.
//
// The client keeps two lazily created connections:
//
// - a writer connection to REDIS_HOST used by Set, Delete, DeleteByPattern
// and GetDel
// - a reader connection to REDIS_READER_HOST (falling back to REDIS_HOST)
// used by Get and TTL
//
// Every key is stored under Config.Prefix ("CACHE_" by default). Reads close
// the connection they used before returning, so an idle service holds no
// reader connection. Writes keep the writer open until Close.
//
// Store failures never reach the caller. Reads report a miss, writes are
// logged and dropped. A replica that answers READONLY is dropped and the next
// call reconnects.
//
// # Basic Usage
//
//	c, err := cache.New(cache.Config{
//		Host:               "localhost",
//		Port:               6379,
//		Prefix:             cache.DefaultPrefix,
//		MaxConnectAttempts: 3,
//		Reconnect:          backoff.CappedLinear{Step: 200 * time.Millisecond, Max: time.Second},
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	c.Set(ctx, cache.Key("user", 42), payload, 5*time.Minute)
//
//	if value, ok := c.Get(ctx, cache.Key("user", 42)); ok {
//		// hit
//	}
//
//	// Invalidate every user entry
//	removed := c.DeleteByPattern(ctx, "user_*")
//
// # Typed Values
//
//	cache.SetJSON(ctx, c, "user_42", user, time.Minute)
//	user, ok := cache.GetJSON[User](ctx, c, "user_42")
//
// # Metrics
//
//   - cache_hits_total{operation} - Reads that found a value
//   - cache_misses_total{operation} - Reads that found nothing
//   - cache_errors_total{operation} - Failed store commands
//   - cache_pattern_deleted_keys_total - Keys removed by pattern deletes
//   - cache_connections_opened_total{slot,result} - Dial outcomes
//   - cache_connections_closed_total{slot} - Connections torn down
package cache

package cache

import (
	"fmt"
	"strings"
)

// DefaultPrefix namespaces every key this package writes.
const DefaultPrefix = "CACHE_"

// Key builds a deterministic cache key by joining the parts with "_".
// Empty parts are skipped.
//
// Example:
//
//	cache.Key("user", 42)             // "user_42"
//	cache.Key("user_list", 20, 40)    // "user_list_20_40"
func Key(parts ...any) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.Trim(fmt.Sprint(p), "_")
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, "_")
}

// namespaced prefixes a caller key. Patterns are prefixed the same way so
// that "user_*" only ever matches this client's keys.
func (c *Client) namespaced(key string) string {
	return c.prefix + key
}

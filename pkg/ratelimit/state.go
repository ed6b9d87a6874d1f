// Package ratelimit implements a fixed-window request limiter backed by Redis.
// Counters are shared by every service instance pointing at the same store,
// so the limit holds across replicas.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Response headers describing the caller's window.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	// Allowed is false once the caller exceeded Limit in the current window.
	Allowed bool `json:"allowed"`

	// Limit is the number of requests permitted per window.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (never negative).
	Remaining int `json:"remaining"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`
}

// RetryAfter returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (d Decision) RetryAfter() time.Duration {
	duration := time.Until(d.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// WriteHeaders sets the rate limit headers on h. Retry-After is only set for
// rejected requests and is rounded up to whole seconds.
func (d Decision) WriteHeaders(h http.Header) {
	h.Set(HeaderLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(d.ResetAt.Unix(), 10))

	if !d.Allowed {
		secs := int((d.RetryAfter() + time.Second - 1) / time.Second)
		h.Set(HeaderRetryAfter, strconv.Itoa(secs))
	}
}

func decide(count int64, limit int, resetAt time.Time) Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

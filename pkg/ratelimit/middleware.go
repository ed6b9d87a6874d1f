package ratelimit

import (
	"net"
	"net/http"
)

// KeyFunc identifies the client a request is counted against.
type KeyFunc func(r *http.Request) string

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, d Decision)

// ClientIP keys requests by remote IP. Put a RealIP middleware in front of
// it when running behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware applies the limiter to every request. Rejected requests are
// handed to deny, or answered with a bare 429 when deny is nil.
func (l *Limiter) Middleware(key KeyFunc, deny DenyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	if deny == nil {
		deny = func(w http.ResponseWriter, r *http.Request, d Decision) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(r.Context(), key(r))
			d.WriteHeaders(w.Header())

			if !d.Allowed {
				deny(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

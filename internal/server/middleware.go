package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/user-service/internal/apperror"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/Sternrassler/user-service/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Header and query names.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderAPIKey    = "X-Api-Key"
	QueryTraceID    = "traceId"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_server_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_request_duration_seconds",
		Help:    "HTTP request duration in seconds by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// trace tags each request with a trace id taken from the traceId query
// parameter or freshly generated. The id is echoed in X-Request-Id and
// attached to the request logger.
func trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		traceID := r.URL.Query().Get(QueryTraceID)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, traceID)

		ctx := logging.WithTraceID(r.Context(), traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// instrument records metrics and an access log line per request.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("Request handled")
	})
}

// recoverer turns a panic into a 500 envelope.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.writeError(w, r, apperror.Internal(fmt.Errorf("panic: %v", rec)))
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey rejects requests whose X-Api-Key does not match key.
func (s *Server) requireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAPIKey)
			if got == "" {
				s.writeError(w, r, apperror.Forbidden("Missing API Key"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				s.writeError(w, r, apperror.Forbidden("API Key invalid"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimited renders a denied rate limit decision.
func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	logging.Ctx(r.Context()).Warn().
		Str("client", ratelimit.ClientIP(r)).
		Int("limit", d.Limit).
		Msg("Rate limit exceeded")

	s.writeError(w, r, apperror.New(apperror.KindTooManyRequests, "Too many requests, please try again later").
		WithContext("reset_at", d.ResetAt.UTC()))
}

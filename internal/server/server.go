// Package server exposes the user service over HTTP: a chi router with the
// /api/v1 user routes, health probes and metrics, wrapped in the trace,
// rate limit and API key middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/user-service/internal/apperror"
	"github.com/Sternrassler/user-service/internal/user"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/Sternrassler/user-service/pkg/metrics"
	"github.com/Sternrassler/user-service/pkg/pagination"
	"github.com/Sternrassler/user-service/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address used by Run.
	Addr string

	// APIKey guards /api routes. Empty disables the check.
	APIKey string

	// DetailedErrors adds the error field to error envelopes.
	DetailedErrors bool

	Users *user.Service

	// Limiter throttles /api routes per client IP when set.
	Limiter *ratelimit.Limiter

	// DB is pinged by /ready when set.
	DB Pinger

	Pagination pagination.Config

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP front of the service.
type Server struct {
	opts           Options
	detailedErrors bool
	router         chi.Router
	logger         zerolog.Logger
}

// New builds the router. It fails only on misconfiguration.
func New(opts Options) (*Server, error) {
	if opts.Users == nil {
		return nil, errors.New("user service is required")
	}
	if opts.Pagination.DefaultLimit <= 0 {
		opts.Pagination = pagination.DefaultConfig()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		opts:           opts,
		detailedErrors: opts.DetailedErrors,
		logger:         logging.NewLogger("server"),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(trace)
	r.Use(middleware.RealIP)
	r.Use(instrument)

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.opts.Limiter != nil {
			r.Use(s.opts.Limiter.Middleware(ratelimit.ClientIP, s.rateLimited))
		}
		if s.opts.APIKey != "" {
			r.Use(s.requireAPIKey(s.opts.APIKey))
		} else {
			s.logger.Warn().Msg("API key is not configured, /api routes are unauthenticated")
		}
		r.Use(middleware.Compress(5))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.Post("/", s.createUser)
			r.Get("/{id}", s.getUser)
			r.Patch("/{id}", s.updateUser)
			r.Delete("/{id}", s.deleteUser)
		})
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.opts.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.DB.PingContext(ctx); err != nil {
			s.writeError(w, r, apperror.Wrap(apperror.KindServiceUnavailable, err, "Database unavailable"))
			return
		}
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

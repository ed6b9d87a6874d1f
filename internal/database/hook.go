package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uptrace/bun"
)

var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Database query duration in seconds by operation",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	}, []string{"operation"})

	queryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_query_errors_total",
		Help: "Total failed database queries by operation",
	}, []string{"operation"})
)

// QueryHook logs every query at debug level and records its duration.
// sql.ErrNoRows is not counted as a failure.
type QueryHook struct {
	slow time.Duration
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a hook that warns about queries slower than 500ms.
func NewQueryHook() *QueryHook {
	return &QueryHook{slow: 500 * time.Millisecond}
}

// BeforeQuery implements bun.QueryHook.
func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook.
func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	op := event.Operation()
	queryDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	logger := logging.Ctx(ctx)
	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		queryErrors.WithLabelValues(op).Inc()
		logger.Warn().Err(event.Err).Str("operation", op).Dur("duration", elapsed).Msg("Query failed")
	case elapsed > h.slow:
		logger.Warn().Str("operation", op).Dur("duration", elapsed).Str("query", event.Query).Msg("Slow query")
	default:
		logger.Debug().Str("operation", op).Dur("duration", elapsed).Str("query", event.Query).Msg("Query executed")
	}
}

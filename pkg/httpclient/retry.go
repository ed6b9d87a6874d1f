package httpclient

import (
	"context"
	"errors"

	"github.com/Sternrassler/user-service/pkg/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_client_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 3, 5, 10},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// error, or the retry budget is spent. It returns the number of attempts made
// and the last failure (nil on success). Cancelling ctx stops the loop during
// backoff.
func (c *Client) retryWithBackoff(ctx context.Context, fn func(attempt int) *Error) (int, *Error) {
	var lastErr *Error

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}
		lastErr = err
		class := string(err.ErrorClass)

		if !c.shouldRetry(err) {
			return attempt, lastErr
		}

		retry := attempt // 1-based number of the retry about to be made
		if retry > c.retryCount {
			retryExhaustedTotal.WithLabelValues(class).Inc()
			c.logger.Warn().
				Str("error_class", class).
				Int("attempts", attempt).
				Msg("Retry attempts exhausted")
			return attempt, lastErr
		}

		delay := c.backoff.Delay(retry)
		retriesTotal.WithLabelValues(class).Inc()
		retryBackoffSeconds.WithLabelValues(class).Observe(delay.Seconds())

		c.logger.Debug().
			Str("error_class", class).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if sleepErr := backoff.Sleep(ctx, delay); sleepErr != nil {
			c.logger.Warn().
				Str("error_class", class).
				Int("attempt", attempt).
				Bool("deadline", errors.Is(sleepErr, context.DeadlineExceeded)).
				Msg("Context cancelled during retry backoff")
			return attempt, lastErr
		}
	}
}

// Package httpclient provides a forgiving outbound HTTP client with linear
// retry backoff and failure normalization. Fetch never returns an error:
// every failure is folded into a Response with a non-2xx status.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/user-service/pkg/backoff"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for outbound requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_requests_total",
		Help: "Total outbound HTTP attempts by host and status",
	}, []string{"host", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_client_request_duration_seconds",
		Help:    "Outbound HTTP call duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"host"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_errors_total",
		Help: "Total outbound HTTP failures by class",
	}, []string{"class"})
)

// Defaults applied by DefaultConfig.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetryCount = 3
	DefaultRetryDelay = 1 * time.Second
)

// DefaultRetryableStatuses are retried when a call fails with one of them.
var DefaultRetryableStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusUnauthorized,
}

// Config holds the client configuration. It is copied by New and cannot be
// changed afterwards.
type Config struct {
	// BaseURL is used for requests that carry no BaseURL of their own.
	BaseURL string

	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration

	// RetryCount is the number of retries after the first attempt.
	RetryCount int

	// Backoff yields the wait before retry n (1-based).
	Backoff backoff.Policy

	// RetryableStatuses are the HTTP statuses that trigger a retry.
	RetryableStatuses []int

	// Transport overrides http.DefaultTransport (for testing).
	Transport http.RoundTripper
}

// DefaultConfig returns the default configuration: 10s per attempt, three
// retries, attemptNumber × 1s between them.
func DefaultConfig() Config {
	return Config{
		Timeout:           DefaultTimeout,
		RetryCount:        DefaultRetryCount,
		Backoff:           backoff.Linear{Base: DefaultRetryDelay},
		RetryableStatuses: append([]int(nil), DefaultRetryableStatuses...),
	}
}

// Client issues outbound requests. It holds no per-call state and is safe
// for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	retryCount int
	backoff    backoff.Policy
	retryable  map[int]struct{}
	logger     zerolog.Logger
}

// New creates a client. It fails only on misconfiguration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.RetryCount < 0 {
		return nil, fmt.Errorf("retry_count must be >= 0 (got %d)", cfg.RetryCount)
	}
	if cfg.Backoff == nil {
		return nil, fmt.Errorf("backoff policy is required")
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
		}
	}

	retryable := make(map[int]struct{}, len(cfg.RetryableStatuses))
	for _, status := range cfg.RetryableStatuses {
		if status < 100 || status > 599 {
			return nil, fmt.Errorf("invalid retryable status %d", status)
		}
		retryable[status] = struct{}{}
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		retryCount: cfg.RetryCount,
		backoff:    cfg.Backoff,
		retryable:  retryable,
		logger:     logging.NewLogger("http-client"),
	}, nil
}

// Fetch performs the request with retries and returns a normalized response.
// It never returns nil.
func (c *Client) Fetch(ctx context.Context, req Request) *Response {
	if req.BaseURL == "" {
		req.BaseURL = c.baseURL
	}
	host := hostLabel(req)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	var resp *Response
	attempts, failure := c.retryWithBackoff(ctx, func(attempt int) *Error {
		r, err := c.do(ctx, req)
		if err != nil {
			errorsTotal.WithLabelValues(string(err.ErrorClass)).Inc()
			requestsTotal.WithLabelValues(host, statusLabel(err)).Inc()

			c.logger.Warn().
				Str("method", req.Method).
				Str("host", host).
				Int("status", err.StatusCode).
				Str("code", err.Code).
				Str("error_class", string(err.ErrorClass)).
				Int("attempt", attempt).
				Msg("Outbound request failed")
			return err
		}

		requestsTotal.WithLabelValues(host, strconv.Itoa(r.StatusCode)).Inc()
		resp = r
		return nil
	})

	if failure != nil {
		c.logger.Error().
			Str("method", req.Method).
			Str("host", host).
			Int("status", failure.StatusCode).
			Str("code", failure.Code).
			Int("attempts", attempts).
			Msg("Outbound request failed, returning normalized response")
		return normalize(failure, attempts)
	}

	resp.Attempts = attempts
	return resp
}

// Get performs a plain GET to an absolute URL.
func (c *Client) Get(ctx context.Context, rawURL string) *Response {
	return c.Fetch(ctx, Request{Path: rawURL, Method: http.MethodGet})
}

// do sends a single attempt bounded by the per-attempt timeout.
func (c *Client) do(ctx context.Context, req Request) (*Response, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := req.build(attemptCtx)
	if err != nil {
		return nil, newBuildError(err)
	}
	sent := snapshotRequest(httpReq, c.timeout)

	c.logger.Debug().
		Str("method", httpReq.Method).
		Str("url", sent.URL).
		Msg("Executing outbound request")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(sent, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newTransportError(sent, fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, newStatusError(sent, &responseSnapshot{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header.Clone(),
			Data:       decodeData(body),
		})
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Data:       decodeData(body),
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// shouldRetry decides from the status code and error code alone. Failures
// without a built request never retry.
func (c *Client) shouldRetry(err *Error) bool {
	if err.request == nil {
		return false
	}
	if err.Code == CodeConnAborted {
		return true
	}
	if err.response != nil {
		_, ok := c.retryable[err.response.StatusCode]
		return ok
	}
	return false
}

func hostLabel(req Request) string {
	target, err := req.url()
	if err != nil {
		return "invalid"
	}
	u, err := url.Parse(target)
	if err != nil {
		return "invalid"
	}
	return u.Host
}

func statusLabel(err *Error) string {
	if err.response != nil {
		return strconv.Itoa(err.StatusCode)
	}
	return string(err.ErrorClass)
}

// Package metrics exposes the Prometheus registry of the user service.
// All metrics are defined in their respective packages (httpclient, cache,
// ratelimit, database, server, user, notify) to maintain modularity and
// avoid circular dependencies.
//
// This package provides the scrape handler and a reference of all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry read by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// HTTP Server Metrics (internal/server):
//   - http_server_requests_total{method, route, status} (Counter): Handled requests
//   - http_server_request_duration_seconds{method, route} (Histogram): Handler latency
//
// User Metrics (internal/user):
//   - user_events_total{event} (Counter): Lifecycle events emitted
//
// Database Metrics (internal/database):
//   - db_query_duration_seconds{operation} (Histogram): Query latency
//   - db_query_errors_total{operation} (Counter): Failed queries (no-rows excluded)
//
// Webhook Metrics (internal/notify):
//   - webhook_deliveries_total{event, result} (Counter): Webhook deliveries by outcome
//
// Rate Limit Metrics (pkg/ratelimit):
//   - rate_limit_allowed_total (Counter): Requests admitted
//   - rate_limit_blocks_total (Counter): Requests rejected with 429
//   - rate_limit_store_errors_total (Counter): Store failures (request admitted)
//
// Cache Metrics (pkg/cache):
//   - cache_hits_total{operation} (Counter): Reads that found a value
//   - cache_misses_total{operation} (Counter): Reads that found nothing
//   - cache_errors_total{operation} (Counter): Failed store commands
//   - cache_pattern_deleted_keys_total (Counter): Keys removed by pattern deletes
//   - cache_connections_opened_total{slot, result} (Counter): Dial outcomes per slot
//   - cache_connections_closed_total{slot} (Counter): Connections torn down per slot
//
// Outbound Request Metrics (pkg/httpclient):
//   - http_client_requests_total{host, status} (Counter): Attempts by host and status
//   - http_client_request_duration_seconds{host} (Histogram): Call duration, retries included
//   - http_client_errors_total{class} (Counter): Failed attempts by class
//   - http_client_retries_total{error_class} (Counter): Retries by error class
//   - http_client_retry_backoff_seconds{error_class} (Histogram): Backoff waits
//   - http_client_retry_exhausted_total{error_class} (Counter): Calls that spent the retry budget
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(cache_hits_total[5m])) /
//   (sum(rate(cache_hits_total[5m])) + sum(rate(cache_misses_total[5m])))
//
//   # Reader connection churn
//   rate(cache_connections_closed_total{slot="reader"}[5m])
//
//   # 5xx Ratio
//   sum(rate(http_server_requests_total{status=~"5.."}[5m])) /
//   sum(rate(http_server_requests_total[5m]))
//
//   # P95 Outbound Latency
//   histogram_quantile(0.95, rate(http_client_request_duration_seconds_bucket[5m]))

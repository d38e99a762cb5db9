// Package metrics exposes the Prometheus metrics of the Exorde client.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination) to maintain modularity and avoid circular dependencies.
//
// This package serves them and documents the catalogue.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the Exorde client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// ReadyFunc reports whether a dependency such as Redis is reachable.
type ReadyFunc func(ctx context.Context) error

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// NewServeMux routes /metrics, /health and /ready. A nil ready always reports
// ready.
func NewServeMux(ready ReadyFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// NewServer returns an HTTP server for NewServeMux on addr.
func NewServer(addr string, ready ReadyFunc) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewServeMux(ready),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - exorde_ratelimit_remaining (Gauge): Requests remaining in the API quota window
//   - exorde_ratelimit_blocks_total (Counter): Requests blocked on an exhausted quota
//   - exorde_ratelimit_throttles_total (Counter): Requests delayed on a low quota
//
// Cache Metrics (pkg/cache):
//   - exorde_cache_hits_total (Counter): Pages served from Redis
//   - exorde_cache_misses_total (Counter): Cache misses
//   - exorde_cache_size_bytes (Gauge): Bytes written to the cache
//   - exorde_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - exorde_requests_total{endpoint, status} (Counter): Requests by endpoint path and HTTP status
//   - exorde_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint path
//   - exorde_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Pagination Metrics (pkg/pagination):
//   - exorde_pages_fetched_total{endpoint} (Counter): Decoded pages
//   - exorde_items_fetched_total{endpoint} (Counter): Accumulated items
//   - exorde_fetch_failures_total{endpoint} (Counter): Fetches stopped with partial results
//   - exorde_fetch_duration_seconds{endpoint} (Histogram): Duration of a whole paginated fetch
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(exorde_cache_hits_total[5m])) /
//   (sum(rate(exorde_cache_hits_total[5m])) + sum(rate(exorde_cache_misses_total[5m])))
//
//   # Quota Status
//   exorde_ratelimit_remaining < 10
//
//   # Items per Page
//   rate(exorde_items_fetched_total[5m]) / rate(exorde_pages_fetched_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(exorde_request_duration_seconds_bucket[5m]))

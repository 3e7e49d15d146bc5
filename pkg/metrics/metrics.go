// Package metrics exposes the Prometheus metrics of the t3 toolkit.
// All metrics are defined in their respective packages (client, pagination,
// ratelimit, cache) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the toolkit.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves /metrics and /health on a background listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Start listens on addr and serves metrics until Shutdown.
func Start(addr string) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - t3_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("cache" for cache hits)
//   - t3_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - t3_errors_total{class} (Counter): Errors by class (client, auth, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - t3_retries_total{error_class} (Counter): Retry attempts by error class
//   - t3_retry_backoff_seconds (Histogram): Backoff before each retry
//   - t3_retry_exhausted_total (Counter): Requests that exhausted their attempts
//
// Collection Metrics (pkg/pagination):
//   - t3_pages_fetched_total{strategy} (Counter): Pages fetched
//   - t3_page_fetch_errors_total{strategy} (Counter): Failed page fetches
//   - t3_collection_load_duration_seconds{strategy, outcome} (Histogram): Full load duration
//
// Rate Limit Metrics (pkg/ratelimit):
//   - t3_rate_limit_wait_seconds (Histogram): Time spent waiting for a slot
//   - t3_rate_limit_acquires_total (Counter): Slots granted
//
// Cache Metrics (pkg/cache):
//   - t3_cache_lookups_total{endpoint,result} (Counter): hit, miss or expired
//   - t3_cache_written_bytes_total{endpoint} (Counter): Bytes written to Redis
//   - t3_cache_invalidated_total{endpoint} (Counter): Pages removed by invalidation
//   - t3_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Page error rate
//   rate(t3_page_fetch_errors_total[5m]) / rate(t3_pages_fetched_total[5m])
//
//   # P95 collection load time
//   histogram_quantile(0.95, rate(t3_collection_load_duration_seconds_bucket[5m]))
//
//   # Time throttled by the rate limiter
//   rate(t3_rate_limit_wait_seconds_sum[5m])

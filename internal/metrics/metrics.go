// Package metrics provides Prometheus instrumentation for the dashboard.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamRequestsTotal counts outgoing REST calls by client, method and status.
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradezone_upstream_requests_total",
		Help: "Total requests sent to the trading and auth APIs",
	}, []string{"client", "method", "status"})

	// UpstreamRequestDuration tracks upstream latency by client and method.
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradezone_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"client", "method"})

	// QueryFetchesTotal counts query cache fetches by query name and result.
	QueryFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradezone_query_fetches_total",
		Help: "Query cache fetches",
	}, []string{"query", "result"})

	// ActiveQueries tracks keys with at least one observer.
	ActiveQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradezone_active_queries",
		Help: "Number of polled query keys",
	})

	// PriceFlashesTotal counts highlight transitions by direction.
	PriceFlashesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradezone_price_flashes_total",
		Help: "Price change highlights started",
	}, []string{"direction"})

	// AuthErrorsTotal counts categorized auth errors, including suppressed duplicates.
	AuthErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradezone_auth_errors_total",
		Help: "Categorized authentication service errors",
	}, []string{"category"})

	// WebSocketClients tracks connected live-update clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradezone_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts presentation server requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradezone_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradezone_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route patterns keep ids out of the label set.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

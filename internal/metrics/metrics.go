// Package metrics provides Prometheus instrumentation for the paper engine.
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
	// TradesTotal counts executed trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenuniverse_trades_total",
		Help: "Total number of paper trades executed",
	}, []string{"side"})

	// TradeRejections counts trades refused by the executor, by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenuniverse_trade_rejections_total",
		Help: "Trades rejected by validation or balance checks",
	}, []string{"reason"})

	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokenuniverse_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// FeedTicks counts price updates delivered by live feeds.
	FeedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenuniverse_feed_ticks_total",
		Help: "Price updates delivered by live feeds",
	})

	// FeedFailures counts feed ticks skipped because the fetch failed.
	FeedFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenuniverse_feed_failures_total",
		Help: "Feed ticks skipped after a failed fetch",
	})

	// ActiveFeeds tracks running live price feeds.
	ActiveFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tokenuniverse_active_feeds",
		Help: "Number of running live price feeds",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tokenuniverse_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	QuoteFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenuniverse_quote_fetch_errors_total",
		Help: "Failed quote lookups against the market data API",
	})

	QuoteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tokenuniverse_quote_latency_seconds",
		Help:    "Market data API round-trip latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenuniverse_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokenuniverse_http_request_duration_seconds",
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
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, routePattern(r)).Observe(duration)
	})
}

// routePattern labels by chi route pattern so mint addresses in the path do
// not blow up cardinality.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}

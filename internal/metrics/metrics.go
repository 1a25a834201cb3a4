package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boardsync",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	wsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Name:      "ws_events_total",
		Help:      "Total number of WebSocket events received, by kind",
	}, []string{"kind"})

	wsEventErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Name:      "ws_event_errors_total",
		Help:      "Total number of WebSocket events that failed, by kind and code",
	}, []string{"kind", "code"})

	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boardsync",
		Name:      "connected_clients",
		Help:      "Current number of connected WebSocket clients",
	})
)

// EventReceived counts one inbound ws event.
func EventReceived(kind string) { wsEvents.WithLabelValues(kind).Inc() }

// EventFailed counts one rejected or failed ws event.
func EventFailed(kind, code string) { wsEventErrors.WithLabelValues(kind, code).Inc() }

func ClientConnected()    { connectedClients.Inc() }
func ClientDisconnected() { connectedClients.Dec() }

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps WebSocket upgrades working under the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request counts and latency per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpLatency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classcal_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classcal_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	feedLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classcal_feed_loads_total",
		Help: "Feed loads by origin (url, import) and result (ok, error, stale, cancelled).",
	}, []string{"origin", "result"})

	feedLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classcal_feed_load_duration_seconds",
		Help:    "Time spent fetching and parsing a feed.",
		Buckets: prometheus.DefBuckets,
	}, []string{"origin"})

	feedEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classcal_feed_events",
		Help: "Number of events in the currently loaded feed.",
	})

	feedDroppedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classcal_feed_dropped_blocks_total",
		Help: "VEVENT blocks dropped because they had no usable DTSTART.",
	})
)

// Middleware records request metrics labelled by chi route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFeedLoad records the outcome of one feed load.
func ObserveFeedLoad(origin, result string, start time.Time) {
	feedLoadsTotal.WithLabelValues(origin, result).Inc()
	feedLoadDuration.WithLabelValues(origin).Observe(time.Since(start).Seconds())
}

// SetFeedEvents publishes the size of the current event list.
func SetFeedEvents(n int) {
	feedEvents.Set(float64(n))
}

// AddDroppedBlocks counts malformed VEVENT blocks.
func AddDroppedBlocks(n int) {
	if n > 0 {
		feedDroppedBlocks.Add(float64(n))
	}
}

// routePattern is read after the handler ran, when chi has filled in the
// matched pattern; unmatched requests are folded into one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RendersTotal counts render calls by outcome: rendered, cached, error.
	RendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texmath_renders_total",
			Help: "Total number of render requests by result.",
		},
		[]string{"result"},
	)

	// CacheLookupsTotal counts cache lookups: hit, miss, error.
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texmath_cache_lookups_total",
			Help: "Total number of cache lookups by result.",
		},
		[]string{"result"},
	)

	RenderDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "texmath_render_duration_seconds",
			Help:    "Wall time of uncached renders in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ToolDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "texmath_tool_duration_seconds",
			Help:    "Wall time of external tool invocations in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"tool"},
	)

	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "texmath_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method", "status_code"},
	)

	registerOnce sync.Once
)

// Register adds all collectors to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RendersTotal,
			CacheLookupsTotal,
			RenderDurationSeconds,
			ToolDurationSeconds,
			HTTPLatencySeconds,
		)
	})
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records latency per request. route reports the matched route
// pattern so that artifact names don't explode label cardinality.
func Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			HTTPLatencySeconds.
				WithLabelValues(route(r), r.Method, strconv.Itoa(rec.statusCode)).
				Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Package metrics centralizes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neowatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neowatch_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	catalogObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowatch_catalog_objects",
		Help: "Number of tracked objects in the current catalog.",
	})

	catalogFallbackObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowatch_catalog_fallback_objects",
		Help: "Number of tracked objects without usable orbital elements.",
	})

	catalogAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowatch_catalog_age_seconds",
		Help: "Age of the current catalog dataset in seconds.",
	})

	propagationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "neowatch_propagation_duration_seconds",
		Help:    "Duration of full-catalog position evaluation for one frame.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	propagationPositions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neowatch_propagation_positions_total",
			Help: "Total object position evaluations by outcome.",
		},
		[]string{"outcome"}, // elements, fallback, indeterminate
	)

	propagationWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowatch_propagation_workers",
		Help: "Size of the propagation worker pool.",
	})

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowatch_keyframe_cache_hits_total",
		Help: "Keyframe cache hits.",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowatch_keyframe_cache_misses_total",
		Help: "Keyframe cache misses.",
	})

	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowatch_keyframe_cache_evictions_total",
		Help: "Keyframe cache entries evicted.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowatch_keyframe_cache_entries",
		Help: "Keyframes currently cached.",
	})

	cacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowatch_keyframe_cache_size_bytes",
		Help: "Estimated keyframe cache memory footprint.",
	})

	cacheGracePeriod = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowatch_keyframe_cache_grace_period_active",
		Help: "1 while the cache is rebuilding after a catalog refresh.",
	})

	cacheRegenErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowatch_keyframe_cache_regeneration_errors_total",
		Help: "Keyframe generation failures in the cache maintenance loop.",
	})

	cacheRegenDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "neowatch_keyframe_cache_regeneration_duration_seconds",
		Help:    "Duration of keyframe generation in the cache maintenance loop.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	streamConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neowatch_stream_connections_total",
			Help: "SSE stream connection events.",
		},
		[]string{"event"}, // connect, disconnect
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowatch_streams_active",
		Help: "Currently connected SSE streams.",
	})

	streamMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowatch_stream_messages_total",
		Help: "SSE data messages sent.",
	})

	streamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowatch_stream_bytes_total",
		Help: "Bytes written to SSE streams.",
	})

	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neowatch_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		catalogObjects,
		catalogFallbackObjects,
		catalogAgeSeconds,
		propagationDuration,
		propagationPositions,
		propagationWorkers,
		cacheHits,
		cacheMisses,
		cacheEvictions,
		cacheEntries,
		cacheSizeBytes,
		cacheGracePeriod,
		cacheRegenErrors,
		cacheRegenDuration,
		streamConnections,
		streamsActive,
		streamMessages,
		streamBytes,
		streamErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetCatalogCounts publishes the tracked-object totals for the current
// dataset.
func SetCatalogCounts(total, fallback int) {
	catalogObjects.Set(float64(total))
	catalogFallbackObjects.Set(float64(fallback))
}

// SetCatalogAge publishes the dataset age gauge.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// RecordPropagation records one batch evaluation.
func RecordPropagation(d time.Duration, elements, fallback, indeterminate int) {
	propagationDuration.Observe(d.Seconds())
	propagationPositions.WithLabelValues("elements").Add(float64(elements))
	propagationPositions.WithLabelValues("fallback").Add(float64(fallback))
	propagationPositions.WithLabelValues("indeterminate").Add(float64(indeterminate))
}

// SetPropagationWorkers publishes the worker pool size.
func SetPropagationWorkers(n int) {
	propagationWorkers.Set(float64(n))
}

func IncCacheHits() { cacheHits.Inc() }

func IncCacheMisses() { cacheMisses.Inc() }

func AddCacheEvictions(n int) { cacheEvictions.Add(float64(n)) }

func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }

func SetCacheSizeBytes(n int64) { cacheSizeBytes.Set(float64(n)) }

func IncCacheRegenerationErrors() { cacheRegenErrors.Inc() }

// SetCacheGracePeriodActive flips the cutover gauge.
func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGracePeriod.Set(1)
	} else {
		cacheGracePeriod.Set(0)
	}
}

// ObserveCacheRegenerationDuration records one generation pass.
func ObserveCacheRegenerationDuration(d time.Duration) {
	cacheRegenDuration.Observe(d.Seconds())
}

func IncStreamConnections(event string) { streamConnections.WithLabelValues(event).Inc() }

func IncStreamsActive() { streamsActive.Inc() }

func DecStreamsActive() { streamsActive.Dec() }

func IncStreamMessages() { streamMessages.Inc() }

func AddStreamBytes(n int64) { streamBytes.Add(float64(n)) }

func IncStreamErrors(reason string) { streamErrors.WithLabelValues(reason).Inc() }

// knownRoutes are exact paths recorded verbatim as metric labels.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/objects":          true,
	"/api/v1/approaches":       true,
	"/api/v1/approaches/scan":  true,
	"/api/v1/catalog/metadata": true,
	"/api/v1/catalog/refresh":  true,
	"/api/v1/cache/stats":      true,
	"/api/v1/stream/positions": true,
}

// normalizeRoute collapses parameterized and unknown paths so bot scans and
// per-object ids cannot blow up label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/objects/"); ok && rest != "" {
		return "/api/v1/objects/{id}"
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/position/"); ok && rest != "" {
		return "/api/v1/position/{id}"
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/track/"); ok && rest != "" {
		return "/api/v1/track/{id}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers behind the middleware still
// see an http.Flusher.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

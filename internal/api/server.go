// Package api wires the HTTP surface: object listings, position queries,
// track sampling, approach reports, catalog management and the SSE stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/neowatch/neowatch/internal/cache"
	"github.com/neowatch/neowatch/internal/health"
	"github.com/neowatch/neowatch/internal/metrics"
	"github.com/neowatch/neowatch/internal/propagation"
	"github.com/neowatch/neowatch/internal/stream"
)

// Refresher triggers an on-demand catalog refresh. Nil disables the refresh
// endpoint.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Deps carries the server's collaborators.
type Deps struct {
	Session    *propagation.Session
	Propagator *propagation.Propagator
	Cache      *cache.KeyframeCache
	Stream     *stream.Handler
	Refresher  Refresher
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.Handle("GET /readyz", health.Readyz(func() bool {
		return deps.Session.Dataset() != nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/objects", s.handleListObjects)
	mux.HandleFunc("GET /api/v1/objects/{id}", s.handleObjectDetail)
	mux.HandleFunc("GET /api/v1/position/{id}", s.handlePosition)
	mux.HandleFunc("GET /api/v1/track/{id}", s.handleTrack)
	mux.HandleFunc("GET /api/v1/approaches", s.handleApproaches)
	mux.HandleFunc("GET /api/v1/approaches/scan", s.handleApproachScan)
	mux.HandleFunc("GET /api/v1/catalog/metadata", s.handleCatalogMetadata)
	mux.HandleFunc("POST /api/v1/catalog/refresh", s.handleCatalogRefresh)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", deps.Stream.HandlePositions)
	}

	// Build middleware chain: metrics -> logging -> mux.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush passes through for the SSE route.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}

// Package stream implements Server-Sent Events (SSE) streaming of object
// position batches. Clients connect via GET /api/v1/stream/positions and
// receive a continuous stream of ECEF positions from the keyframe cache.
//
// SSE message format:
//
//	data: {"type":"object_batch","t":"2026-08-30T04:00:00Z","frame":"ECEF","obj":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","catalog_fetched_at":"...","catalog_age_seconds":1800,"object_count":20}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent
// timeout. Reconnecting clients receive a fresh metadata message on each
// connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/neowatch/neowatch/internal/cache"
	"github.com/neowatch/neowatch/internal/metrics"
	"github.com/neowatch/neowatch/internal/propagation"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Trust X-Forwarded-For / X-Real-IP headers.
}

// Handler manages SSE streaming connections.
type Handler struct {
	cache   *cache.KeyframeCache
	session *propagation.Session
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(kfCache *cache.KeyframeCache, session *propagation.Session, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		cache:   kfCache,
		session: session,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions?step=1&trail=20
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	step := 1
	if v := r.URL.Query().Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid step parameter, must be 1-60"})
			return
		}
		step = n
	}

	trail := 0
	if v := r.URL.Query().Get("trail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 120 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid trail parameter, must be 0-120"})
			return
		}
		trail = n
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := clientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"step", step,
		"trail", trail,
	)

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Use ResponseController to manage write deadlines for long-lived SSE.
	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Send jittered retry interval (3-7s) to prevent thundering-herd
	// reconnection storms when the server restarts.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	// Send metadata message (first message on every connection).
	if ds := h.session.Dataset(); ds != nil {
		meta := metadataMessage{
			Type:        "metadata",
			FetchedAt:   ds.FetchedAt.UTC().Format(time.RFC3339),
			CatalogAge:  int(time.Since(ds.FetchedAt).Seconds()),
			ObjectCount: len(ds.Objects),
		}
		if err := c.sendJSON(meta); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	// Stream batches at the requested step interval.
	ticker := time.NewTicker(time.Duration(step) * time.Second)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return

		case t := <-ticker.C:
			kf := h.cache.Get(t)
			if kf == nil {
				metrics.IncStreamErrors("cache_miss")
				h.logger.Debug("stream cache miss",
					"timestamp", h.cache.RoundToStep(t).UTC().Format(time.RFC3339),
					"remote_ip", ip,
				)
				continue
			}

			var trailKFs []*propagation.Keyframe
			if trail > 0 {
				trailKFs = h.cache.GetRecent(t, trail)
			}

			batch := buildBatchMessage(kf, trailKFs)
			data, err := json.Marshal(batch)
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			if err := c.sendRaw(data); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// buildBatchMessage formats a keyframe into the SSE batch payload.
// If trailKFs is non-empty, each object includes past positions (oldest first).
func buildBatchMessage(kf *propagation.Keyframe, trailKFs []*propagation.Keyframe) objectBatchMessage {
	var trailIndex map[string][][3]float64
	if len(trailKFs) > 0 {
		trailIndex = make(map[string][][3]float64, len(kf.Objects))
		for _, tkf := range trailKFs {
			for _, op := range tkf.Objects {
				trailIndex[op.ID] = append(trailIndex[op.ID], op.PositionECEF)
			}
		}
	}

	objs := make([]objPayload, len(kf.Objects))
	for i, op := range kf.Objects {
		objs[i] = objPayload{
			ID:       op.ID,
			P:        op.PositionECEF,
			Label:    op.Label,
			Fallback: op.Fallback,
		}
		if trailIndex != nil {
			if tr, ok := trailIndex[op.ID]; ok {
				objs[i].Tr = tr
			}
		}
	}
	return objectBatchMessage{
		Type:  "object_batch",
		T:     kf.Timestamp.UTC().Format(time.RFC3339),
		Frame: "ECEF",
		Obj:   objs,
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type        string `json:"type"`
	FetchedAt   string `json:"catalog_fetched_at"`
	CatalogAge  int    `json:"catalog_age_seconds"`
	ObjectCount int    `json:"object_count"`
}

type objectBatchMessage struct {
	Type  string       `json:"type"`
	T     string       `json:"t"`
	Frame string       `json:"frame"`
	Obj   []objPayload `json:"obj"`
}

type objPayload struct {
	ID       string       `json:"id"`
	P        [3]float64   `json:"p"`
	Label    string       `json:"label,omitempty"`
	Fallback bool         `json:"fb,omitempty"`
	Tr       [][3]float64 `json:"tr,omitempty"`
}

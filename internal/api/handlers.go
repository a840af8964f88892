package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/neowatch/neowatch/internal/approach"
	"github.com/neowatch/neowatch/internal/catalog"
	"github.com/neowatch/neowatch/internal/ephemeris"
)

const (
	// maxTrackPositions bounds the CPU spent on a single track request.
	maxTrackPositions = 5000

	defaultTrackStepSec    = 60
	defaultTrackHorizonSec = 3600

	defaultApproachHorizonDays = 30
	maxApproachEvents          = 200

	maxScanIDs      = 50
	defaultScanDays = 7
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// objectSummary is the list-endpoint view of a tracked object.
type objectSummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Hazardous     bool    `json:"hazardous"`
	Magnitude     float64 `json:"absolute_magnitude_h,omitempty"`
	DiameterMinM  float64 `json:"diameter_min_m,omitempty"`
	DiameterMaxM  float64 `json:"diameter_max_m,omitempty"`
	Fallback      bool    `json:"fallback"`
	ApproachCount int     `json:"approach_count"`
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Session.Dataset()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}

	summaries := make([]objectSummary, len(ds.Objects))
	for i, obj := range ds.Objects {
		summaries[i] = objectSummary{
			ID:            obj.ID,
			Name:          obj.DisplayName,
			Hazardous:     obj.Hazardous,
			Magnitude:     obj.AbsoluteMagnitudeH,
			DiameterMinM:  obj.DiameterMinM,
			DiameterMaxM:  obj.DiameterMaxM,
			Fallback:      obj.Elements == nil,
			ApproachCount: len(obj.CloseApproaches),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(summaries),
		"objects": summaries,
	})
}

// elementsPayload exposes orbital elements in catalog-native units.
type elementsPayload struct {
	SemiMajorAxisAU  float64 `json:"semi_major_axis_au"`
	Eccentricity     float64 `json:"eccentricity"`
	InclinationDeg   float64 `json:"inclination_deg"`
	AscendingNodeDeg float64 `json:"ascending_node_deg"`
	ArgPeriapsisDeg  float64 `json:"arg_periapsis_deg"`
	MeanAnomalyDeg   float64 `json:"mean_anomaly_deg"`
	MeanMotionDegDay float64 `json:"mean_motion_deg_day"`
	EpochJD          float64 `json:"epoch_jd"`
}

func (s *Server) handleObjectDetail(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.lookupObject(w, r)
	if !ok {
		return
	}

	resp := map[string]any{
		"id":                   obj.ID,
		"name":                 obj.DisplayName,
		"hazardous":            obj.Hazardous,
		"absolute_magnitude_h": obj.AbsoluteMagnitudeH,
		"diameter_min_m":       obj.DiameterMinM,
		"diameter_max_m":       obj.DiameterMaxM,
		"fallback":             obj.Elements == nil,
		"close_approaches":     obj.CloseApproaches,
	}
	if el := obj.Elements; el != nil {
		const radToDeg = 180 / math.Pi
		resp["elements"] = elementsPayload{
			SemiMajorAxisAU:  el.SemiMajorAxisM / ephemeris.AstronomicalUnitM,
			Eccentricity:     el.Eccentricity,
			InclinationDeg:   el.InclinationRad * radToDeg,
			AscendingNodeDeg: el.AscendingNodeRad * radToDeg,
			ArgPeriapsisDeg:  el.ArgPeriapsisRad * radToDeg,
			MeanAnomalyDeg:   el.MeanAnomalyRad * radToDeg,
			MeanMotionDegDay: el.MeanMotionRadPerDay * radToDeg,
			EpochJD:          el.EpochJD,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// positionPayload is one sampled position on a track.
type positionPayload struct {
	Time     string     `json:"time"`
	Position [3]float64 `json:"position_ecef"`
	Frame    string     `json:"frame"`
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.lookupObject(w, r)
	if !ok {
		return
	}

	at := time.Now().UTC()
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at parameter, must be RFC3339")
			return
		}
		at = t.UTC()
	}

	pos, ok := s.deps.Session.Query(obj.ID, at)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "position indeterminate")
		return
	}

	writeJSON(w, http.StatusOK, positionPayload{
		Time:     at.Format(time.RFC3339),
		Position: pos.Array(),
		Frame:    "ECEF",
	})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.lookupObject(w, r)
	if !ok {
		return
	}

	step := defaultTrackStepSec
	if v := r.URL.Query().Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 86400 {
			writeError(w, http.StatusBadRequest, "invalid step parameter, must be 1-86400 seconds")
			return
		}
		step = n
	}

	horizon := defaultTrackHorizonSec
	if v := r.URL.Query().Get("horizon"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < step || n > 366*86400 {
			writeError(w, http.StatusBadRequest, "invalid horizon parameter, must be step..31622400 seconds")
			return
		}
		horizon = n
	}

	// Reject requests exceeding the positions budget before doing any work.
	positions := horizon/step + 1
	if positions > maxTrackPositions {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":         "horizon/step exceeds positions budget",
			"max_positions": maxTrackPositions,
			"requested":     positions,
		})
		return
	}

	start := time.Now().UTC()
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from parameter, must be RFC3339")
			return
		}
		start = t.UTC()
	}

	track := make([]positionPayload, 0, positions)
	skipped := 0
	for i := 0; i < positions; i++ {
		t := start.Add(time.Duration(i*step) * time.Second)
		pos, ok := s.deps.Session.Query(obj.ID, t)
		if !ok {
			skipped++
			continue
		}
		track = append(track, positionPayload{
			Time:     t.Format(time.RFC3339),
			Position: pos.Array(),
			Frame:    "ECEF",
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      obj.ID,
		"step_s":  step,
		"track":   track,
		"skipped": skipped,
	})
}

func (s *Server) handleApproaches(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Session.Dataset()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}

	days := defaultApproachHorizonDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 3650 {
			writeError(w, http.StatusBadRequest, "invalid days parameter, must be 1-3650")
			return
		}
		days = n
	}

	limit := maxApproachEvents
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxApproachEvents {
			writeError(w, http.StatusBadRequest, "invalid max parameter")
			return
		}
		limit = n
	}

	events := approach.Upcoming(ds.Objects, time.Now().UTC(), time.Duration(days)*24*time.Hour, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handleApproachScan(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Session.Dataset()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}

	var ids []string
	if v := r.URL.Query().Get("ids"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	} else {
		for _, obj := range ds.Objects {
			ids = append(ids, obj.ID)
		}
	}
	if len(ids) == 0 || len(ids) > maxScanIDs {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid ids parameter",
			"max_ids": maxScanIDs,
		})
		return
	}

	days := defaultScanDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			writeError(w, http.StatusBadRequest, "invalid days parameter, must be 1-90")
			return
		}
		days = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	results := approach.ScanMinDistance(ctx, s.deps.Session, ids,
		time.Now().UTC(), time.Duration(days)*24*time.Hour)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleCatalogMetadata(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Session.Dataset()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source":          ds.Source,
		"fetched_at":      ds.FetchedAt.UTC().Format(time.RFC3339),
		"age_seconds":     int(time.Since(ds.FetchedAt).Seconds()),
		"object_count":    len(ds.Objects),
		"fallback_count":  ds.FallbackCount(),
		"workers":         s.deps.Propagator.Config().Workers,
		"step_seconds":    s.deps.Propagator.Config().Step.Seconds(),
		"horizon_seconds": s.deps.Propagator.Config().Horizon.Seconds(),
	})
}

func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		writeError(w, http.StatusNotImplemented, "catalog refresh disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := s.deps.Refresher.Refresh(ctx); err != nil {
		s.logger.Error("catalog refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "catalog refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		writeError(w, http.StatusNotImplemented, "cache disabled")
		return
	}

	stats := s.deps.Cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":          stats.Entries,
		"size_bytes":       stats.SizeBytes,
		"oldest_timestamp": stats.OldestTimestamp,
		"newest_timestamp": stats.NewestTimestamp,
		"hits":             stats.Hits,
		"misses":           stats.Misses,
		"evictions":        stats.Evictions,
		"in_grace_period":  stats.InGracePeriod,
	})
}

// lookupObject resolves the {id} path value against the current catalog,
// writing the error response itself on failure.
func (s *Server) lookupObject(w http.ResponseWriter, r *http.Request) (*catalog.TrackedObject, bool) {
	ds := s.deps.Session.Dataset()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return nil, false
	}

	id := r.PathValue("id")
	obj := ds.Lookup(id)
	if obj == nil {
		writeError(w, http.StatusNotFound, "unknown object")
		return nil, false
	}
	return obj, true
}

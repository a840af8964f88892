// Package approach reports close approaches of tracked objects, both from
// catalog close-approach tables and from numerical scans of the propagated
// geocentric distance.
package approach

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/neowatch/neowatch/internal/catalog"
	"github.com/neowatch/neowatch/internal/propagation"
)

// Event is one upcoming close approach drawn from the catalog.
type Event struct {
	ObjectID       string    `json:"object_id"`
	DisplayName    string    `json:"display_name"`
	Hazardous      bool      `json:"hazardous"`
	Time           time.Time `json:"time"`
	MissDistanceKm float64   `json:"miss_distance_km"`
	VelocityKmS    float64   `json:"velocity_km_s"`
}

// Upcoming collects catalog close approaches inside [from, from+horizon],
// sorted by time. At most maxEvents are returned; zero or negative means no
// limit.
func Upcoming(objects []*catalog.TrackedObject, from time.Time, horizon time.Duration, maxEvents int) []Event {
	until := from.Add(horizon)

	var events []Event
	for _, obj := range objects {
		for _, ca := range obj.CloseApproaches {
			if ca.Time.Before(from) || ca.Time.After(until) {
				continue
			}
			events = append(events, Event{
				ObjectID:       obj.ID,
				DisplayName:    obj.DisplayName,
				Hazardous:      obj.Hazardous,
				Time:           ca.Time,
				MissDistanceKm: ca.MissDistanceKm,
				VelocityKmS:    ca.RelativeVelocityKmS,
			})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})

	if maxEvents > 0 && len(events) > maxEvents {
		events = events[:maxEvents]
	}
	return events
}

// MinDistanceResult is the closest propagated point found for one object.
type MinDistanceResult struct {
	ObjectID  string    `json:"object_id"`
	Time      time.Time `json:"time"`
	DistanceM float64   `json:"distance_m"`
	Error     string    `json:"error,omitempty"`
}

const (
	coarseStep = time.Hour
	fineStep   = time.Minute
)

// ScanMinDistance finds each object's minimum geocentric distance over
// [start, start+horizon] by sampling the propagated position. A coarse pass
// locates the best hour, then a fine pass refines inside the bracket around
// it. Each object is processed in its own goroutine, bounded by a semaphore.
func ScanMinDistance(ctx context.Context, session *propagation.Session, ids []string, start time.Time, horizon time.Duration) []MinDistanceResult {
	results := make([]MinDistanceResult, len(ids))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(idx int, objID string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = MinDistanceResult{ObjectID: objID, Error: "cancelled"}
				return
			}

			results[idx] = scanObject(ctx, session, objID, start, horizon)
		}(i, id)
	}

	wg.Wait()
	return results
}

// scanObject runs the coarse and fine passes for a single object.
func scanObject(ctx context.Context, session *propagation.Session, id string, start time.Time, horizon time.Duration) MinDistanceResult {
	end := start.Add(horizon)

	// Coarse pass.
	bestTime := time.Time{}
	bestDist := 0.0
	found := false
	for t := start; !t.After(end); t = t.Add(coarseStep) {
		if ctx.Err() != nil {
			return MinDistanceResult{ObjectID: id, Error: "cancelled"}
		}
		pos, ok := session.Query(id, t)
		if !ok {
			continue
		}
		if d := pos.Norm(); !found || d < bestDist {
			bestTime, bestDist, found = t, d, true
		}
	}
	if !found {
		return MinDistanceResult{ObjectID: id, Error: "position indeterminate"}
	}

	// Fine pass inside the bracket around the coarse minimum.
	lo := bestTime.Add(-coarseStep)
	if lo.Before(start) {
		lo = start
	}
	hi := bestTime.Add(coarseStep)
	if hi.After(end) {
		hi = end
	}
	for t := lo; !t.After(hi); t = t.Add(fineStep) {
		if ctx.Err() != nil {
			break
		}
		pos, ok := session.Query(id, t)
		if !ok {
			continue
		}
		if d := pos.Norm(); d < bestDist {
			bestTime, bestDist = t, d
		}
	}

	return MinDistanceResult{ObjectID: id, Time: bestTime, DistanceM: bestDist}
}

package propagation

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/neowatch/neowatch/internal/catalog"
	"github.com/neowatch/neowatch/internal/metrics"
	"github.com/neowatch/neowatch/internal/transform"
)

// sessionSnapshot is the immutable state swapped in on each catalog load.
type sessionSnapshot struct {
	dataset       *catalog.Dataset
	placements    map[string]FallbackPlacement
	fallbackStart time.Time
}

// Session holds the active catalog and the derived fallback placements.
// Reads never block: the snapshot is swapped atomically on catalog refresh,
// and in-flight queries keep using the snapshot they started with.
type Session struct {
	snapshot atomic.Pointer[sessionSnapshot]
	logger   *slog.Logger
}

// NewSession creates an empty session. Queries fail until LoadCatalog is called.
func NewSession(logger *slog.Logger) *Session {
	return &Session{logger: logger}
}

// LoadCatalog installs a dataset, deriving fallback placements for every
// object without orbital elements. Fallback motion is measured from the load
// time so synthetic objects restart their tracks on each refresh.
func (s *Session) LoadCatalog(ds *catalog.Dataset) {
	placements := make(map[string]FallbackPlacement)
	for i, obj := range ds.Objects {
		if obj.Elements == nil {
			placements[obj.ID] = DerivePlacement(obj.ID, obj.DisplayName, i)
		}
	}

	s.snapshot.Store(&sessionSnapshot{
		dataset:       ds,
		placements:    placements,
		fallbackStart: time.Now().UTC(),
	})

	metrics.SetCatalogCounts(len(ds.Objects), len(placements))
	s.logger.Info("catalog loaded",
		"source", ds.Source,
		"objects", len(ds.Objects),
		"fallback", len(placements),
		"fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
}

// Dataset returns the current dataset, or nil before the first load.
func (s *Session) Dataset() *catalog.Dataset {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil
	}
	return snap.dataset
}

// ObjectCount returns the number of tracked objects in the current dataset.
func (s *Session) ObjectCount() int {
	snap := s.snapshot.Load()
	if snap == nil {
		return 0
	}
	return len(snap.dataset.Objects)
}

// Query evaluates a single object's ECEF position at time t. The second
// return is false when the object is unknown or its position cannot be
// determined.
func (s *Session) Query(id string, t time.Time) (transform.Vec3, bool) {
	snap := s.snapshot.Load()
	if snap == nil {
		return transform.Vec3{}, false
	}
	obj := snap.dataset.Lookup(id)
	if obj == nil {
		return transform.Vec3{}, false
	}

	fc := newFrameContext(t)
	pl := snap.placements[obj.ID]
	pos, _, ok := positionAt(fc, obj, pl, t.Sub(snap.fallbackStart))
	if !ok {
		return transform.Vec3{}, false
	}
	return pos, true
}

package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neowatch/neowatch/internal/astro"
	"github.com/neowatch/neowatch/internal/catalog"
	"github.com/neowatch/neowatch/internal/ephemeris"
	"github.com/neowatch/neowatch/internal/metrics"
	"github.com/neowatch/neowatch/internal/transform"
)

// frameContext carries the per-frame quantities shared by every object at a
// target time: the Julian day, GMST, and Earth's heliocentric position. These
// are identical for all objects in a keyframe, so they are computed once.
type frameContext struct {
	t       time.Time
	jd      float64
	gmst    float64
	earthEq transform.Vec3
	ok      bool
}

func newFrameContext(t time.Time) frameContext {
	jd := astro.JulianDay(t)
	earth, ok := ephemeris.EarthPosition(jd)
	return frameContext{
		t:       t,
		jd:      jd,
		gmst:    transform.GMST(t),
		earthEq: transform.EclipticToEquatorial(earth),
		ok:      ok,
	}
}

// positionAt evaluates one object's rendered ECEF position within a frame.
// Objects with orbital elements go through the heliocentric pipeline; objects
// without go through their synthetic placement, which always succeeds. The
// second return is the geocentric distance in meters of the rendered vector,
// so it matches the position after the altitude floor.
func positionAt(fc frameContext, obj *catalog.TrackedObject, pl FallbackPlacement, elapsed time.Duration) (transform.Vec3, float64, bool) {
	if obj.Elements == nil {
		pos := pl.PositionAt(elapsed)
		return pos, pos.Norm(), true
	}
	if !fc.ok {
		return transform.Vec3{}, 0, false
	}

	helio, ok := ephemeris.Position(*obj.Elements, fc.jd)
	if !ok {
		return transform.Vec3{}, 0, false
	}

	geoECI := transform.EclipticToEquatorial(helio).Sub(fc.earthEq)
	if !geoECI.IsFinite() {
		return transform.Vec3{}, 0, false
	}

	ecef := transform.EnsureSafeAltitude(transform.ECIToECEFWithGMST(geoECI, fc.gmst))
	return ecef, ecef.Norm(), true
}

// objectLabel renders the display string shown next to an object's marker.
func objectLabel(name string, distanceM float64) string {
	return fmt.Sprintf("%s (%.0f km)", name, distanceM/1000)
}

// Propagator orchestrates keyframe generation for catalog datasets.
type Propagator struct {
	session *Session
	pool    *WorkerPool
	config  PropConfig
	logger  *slog.Logger
}

// NewPropagator creates a new propagation orchestrator.
func NewPropagator(session *Session, config PropConfig, logger *slog.Logger) *Propagator {
	pool := NewWorkerPool(config.Workers, logger)
	metrics.SetPropagationWorkers(config.Workers)
	return &Propagator{
		session: session,
		pool:    pool,
		config:  config,
		logger:  logger,
	}
}

// Config returns the propagation configuration.
func (p *Propagator) Config() PropConfig {
	return p.config
}

// PropagateToTime generates a single keyframe for all tracked objects at the
// target time.
func (p *Propagator) PropagateToTime(ctx context.Context, targetTime time.Time) (*Keyframe, error) {
	snap := p.session.snapshot.Load()
	if snap == nil {
		return nil, fmt.Errorf("no catalog loaded")
	}

	start := time.Now()
	positions, stats := p.pool.EvaluateBatch(ctx, snap, targetTime)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics.RecordPropagation(time.Since(start), stats.elements, stats.fallback, stats.indeterminate)
	if stats.indeterminate > 0 {
		p.logger.Warn("objects skipped in keyframe",
			"skipped", stats.indeterminate,
			"target_time", targetTime.UTC().Format(time.RFC3339),
		)
	}

	return &Keyframe{
		Timestamp: targetTime,
		Objects:   positions,
	}, nil
}

// GenerateKeyframes produces keyframes from startTime forward at the
// configured step over the configured horizon.
func (p *Propagator) GenerateKeyframes(ctx context.Context, startTime time.Time) ([]*Keyframe, error) {
	count := int(p.config.Horizon/p.config.Step) + 1
	frames := make([]*Keyframe, 0, count)

	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		kf, err := p.PropagateToTime(ctx, startTime.Add(time.Duration(i)*p.config.Step))
		if err != nil {
			return nil, fmt.Errorf("keyframe %d: %w", i, err)
		}
		frames = append(frames, kf)
	}

	return frames, nil
}

package propagation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/neowatch/neowatch/internal/astro"
	"github.com/neowatch/neowatch/internal/catalog"
	"github.com/neowatch/neowatch/internal/ephemeris"
	"github.com/neowatch/neowatch/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testDataset builds a three-object catalog: one circular orbit at 1.2 AU,
// one eccentric orbit, and one object without elements.
func testDataset(t *testing.T, fetchedAt time.Time) *catalog.Dataset {
	t.Helper()

	epoch := astro.JulianDay(fetchedAt)

	circ := ephemeris.NewOrbitalElements(
		1.2*ephemeris.AstronomicalUnitM, 0, 0, 0, 0, 0, 0, epoch)
	ecc := ephemeris.NewOrbitalElements(
		1.5*ephemeris.AstronomicalUnitM, 0.3, 10*math.Pi/180, 80*math.Pi/180,
		40*math.Pi/180, 1.0, 0, epoch)

	objects := []*catalog.TrackedObject{
		{ID: "1001", DisplayName: "Circulara", Elements: &circ},
		{ID: "1002", DisplayName: "Eccentria", Elements: &ecc, Hazardous: true},
		{ID: "1003", DisplayName: "Ghost"},
	}
	return catalog.NewDataset("test", fetchedAt, objects)
}

func newTestSession(t *testing.T, now time.Time) *Session {
	t.Helper()
	s := NewSession(testLogger())
	s.LoadCatalog(testDataset(t, now))
	return s
}

func TestQueryReturnsFinitePositionAboveFloor(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s := newTestSession(t, now)

	for _, id := range []string{"1001", "1002", "1003"} {
		pos, ok := s.Query(id, now)
		if !ok {
			t.Fatalf("Query(%q) not ok", id)
		}
		if !pos.IsFinite() {
			t.Fatalf("Query(%q) = %+v, not finite", id, pos)
		}
		if mag := pos.Norm(); mag < transform.SafeAltitudeFloorM-1e-3 {
			t.Errorf("Query(%q) magnitude %.0f m below safe floor", id, mag)
		}
	}
}

func TestQueryUnknownObject(t *testing.T) {
	now := time.Now().UTC()
	s := newTestSession(t, now)

	if _, ok := s.Query("9999999", now); ok {
		t.Fatal("Query on unknown id reported ok")
	}
}

func TestQueryBeforeCatalogLoad(t *testing.T) {
	s := NewSession(testLogger())
	if _, ok := s.Query("1001", time.Now()); ok {
		t.Fatal("Query on empty session reported ok")
	}
}

func TestDerivePlacementDeterministic(t *testing.T) {
	a := DerivePlacement("3542519", "(2010 PK9)", 7)
	b := DerivePlacement("3542519", "(2010 PK9)", 7)
	if a != b {
		t.Fatalf("identical inputs produced different placements: %+v vs %+v", a, b)
	}

	c := DerivePlacement("3542519", "(2010 PK9)", 8)
	if a == c {
		t.Fatal("different index produced identical placement")
	}
	d := DerivePlacement("3542520", "(2010 PK10)", 7)
	if a == d {
		t.Fatal("different object produced identical placement")
	}
}

func TestDerivePlacementRanges(t *testing.T) {
	ids := []string{"1", "42", "3542519", "2000433", "54016476", "abc", ""}
	for i, id := range ids {
		p := DerivePlacement(id, "name-"+id, i)
		if p.BaseLonDeg < -180 || p.BaseLonDeg >= 180 {
			t.Errorf("id %q: lon %.2f out of range", id, p.BaseLonDeg)
		}
		if p.BaseLatDeg < -70 || p.BaseLatDeg > 70 {
			t.Errorf("id %q: lat %.2f out of range", id, p.BaseLatDeg)
		}
		if p.AltitudeM < 400e3 || p.AltitudeM > 2000e3 {
			t.Errorf("id %q: altitude %.0f out of range", id, p.AltitudeM)
		}
		if p.AngularSpeedDegPerSec < 0.2 || p.AngularSpeedDegPerSec > 2.0 {
			t.Errorf("id %q: speed %.3f out of range", id, p.AngularSpeedDegPerSec)
		}
		if p.InclinationDeg < 0 || p.InclinationDeg > 60 {
			t.Errorf("id %q: inclination %.1f out of range", id, p.InclinationDeg)
		}
	}
}

func TestFallbackPositionBounds(t *testing.T) {
	p := DerivePlacement("1003", "Ghost", 2)
	for _, elapsed := range []time.Duration{0, time.Second, time.Minute, time.Hour, 48 * time.Hour} {
		pos := p.PositionAt(elapsed)
		if !pos.IsFinite() {
			t.Fatalf("elapsed %v: position not finite", elapsed)
		}
		want := transform.EarthRadiusM + p.AltitudeM
		if got := pos.Norm(); math.Abs(got-want) > 1 {
			t.Errorf("elapsed %v: magnitude %.0f, want %.0f", elapsed, got, want)
		}
	}
}

func TestWrapLon(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{179.5, 179.5},
		{180, -180},
		{-180, -180},
		{360, 0},
		{540, -180},
		{-190, 170},
		{725, 5},
	}
	for _, tc := range tests {
		if got := wrapLon(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("wrapLon(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPropagateToTime(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s := newTestSession(t, now)
	p := NewPropagator(s, PropConfig{Workers: 4, Step: time.Second, Horizon: 10 * time.Second}, testLogger())

	kf, err := p.PropagateToTime(context.Background(), now)
	if err != nil {
		t.Fatalf("PropagateToTime: %v", err)
	}
	if !kf.Timestamp.Equal(now) {
		t.Errorf("keyframe timestamp %v, want %v", kf.Timestamp, now)
	}
	if len(kf.Objects) != 3 {
		t.Fatalf("keyframe has %d objects, want 3", len(kf.Objects))
	}

	byID := make(map[string]ObjectPosition, len(kf.Objects))
	for _, op := range kf.Objects {
		byID[op.ID] = op
	}

	if op, ok := byID["1003"]; !ok || !op.Fallback {
		t.Error("object 1003 missing or not marked fallback")
	}
	if op, ok := byID["1001"]; !ok || op.Fallback {
		t.Error("object 1001 missing or wrongly marked fallback")
	}

	for id, op := range byID {
		if !strings.Contains(op.Label, "km)") {
			t.Errorf("object %s label %q lacks distance suffix", id, op.Label)
		}
		for i, c := range op.PositionECEF {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				t.Errorf("object %s coordinate %d not finite", id, i)
			}
		}
	}
}

func TestPropagateToTimeWithoutCatalog(t *testing.T) {
	s := NewSession(testLogger())
	p := NewPropagator(s, PropConfig{Workers: 2, Step: time.Second, Horizon: 5 * time.Second}, testLogger())

	if _, err := p.PropagateToTime(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error before catalog load")
	}
}

func TestGenerateKeyframes(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s := newTestSession(t, now)
	p := NewPropagator(s, PropConfig{Workers: 2, Step: 2 * time.Second, Horizon: 10 * time.Second}, testLogger())

	frames, err := p.GenerateKeyframes(context.Background(), now)
	if err != nil {
		t.Fatalf("GenerateKeyframes: %v", err)
	}
	if len(frames) != 6 {
		t.Fatalf("got %d keyframes, want 6", len(frames))
	}
	for i, kf := range frames {
		want := now.Add(time.Duration(i) * 2 * time.Second)
		if !kf.Timestamp.Equal(want) {
			t.Errorf("keyframe %d timestamp %v, want %v", i, kf.Timestamp, want)
		}
	}
}

func TestGenerateKeyframesCancelled(t *testing.T) {
	now := time.Now().UTC()
	s := newTestSession(t, now)
	p := NewPropagator(s, PropConfig{Workers: 2, Step: time.Second, Horizon: 30 * time.Second}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.GenerateKeyframes(ctx, now); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// Session.Query must agree with composing the pipeline stages by hand:
// heliocentric positions, ecliptic to equatorial, geocentric subtraction,
// the GMST rotation into ECEF, and the altitude floor.
func TestQueryMatchesComposedPipeline(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	jd := astro.JulianDay(now)

	el := ephemeris.NewOrbitalElements(
		ephemeris.AstronomicalUnitM, 0, 0, 0, 0, 0, 0, jd)
	objects := []*catalog.TrackedObject{
		{ID: "2001", DisplayName: "Unit", Elements: &el},
	}
	s := NewSession(testLogger())
	s.LoadCatalog(catalog.NewDataset("test", now, objects))

	got, ok := s.Query("2001", now)
	if !ok {
		t.Fatal("Query not ok")
	}

	helio, ok := ephemeris.Position(el, jd)
	if !ok {
		t.Fatal("heliocentric position not ok")
	}
	earth, ok := ephemeris.EarthPosition(jd)
	if !ok {
		t.Fatal("earth position not ok")
	}
	geoECI := transform.EclipticToEquatorial(helio).Sub(transform.EclipticToEquatorial(earth))
	want := transform.EnsureSafeAltitude(transform.ECIToECEFWithGMST(geoECI, transform.GMST(now)))

	if math.Abs(got.X-want.X) > 1e-3 || math.Abs(got.Y-want.Y) > 1e-3 || math.Abs(got.Z-want.Z) > 1e-3 {
		t.Errorf("Query = %+v, composed pipeline = %+v", got, want)
	}
}

// When the altitude floor engages, the reported distance and label must
// describe the rescaled vector rather than the raw model output.
func TestPositionAtFlooredDistance(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	jd := astro.JulianDay(now)

	// A circular orbit at Earth's current radius and ecliptic longitude
	// lands within a few kilometers of Earth's center, far below the
	// rendering floor.
	earth, _ := ephemeris.EarthPosition(jd)
	lon := math.Atan2(earth.Y, earth.X)
	grazing := ephemeris.NewOrbitalElements(
		earth.Norm(), 0, 0, 0, 0, lon+1e-7, 0, jd)
	obj := &catalog.TrackedObject{ID: "3001", DisplayName: "Grazer", Elements: &grazing}

	fc := newFrameContext(now)
	pos, dist, ok := positionAt(fc, obj, FallbackPlacement{}, 0)
	if !ok {
		t.Fatal("position not ok")
	}
	if math.Abs(dist-transform.SafeAltitudeFloorM) > 1 {
		t.Errorf("distance %.0f m, want floor %.0f m", dist, transform.SafeAltitudeFloorM)
	}
	if math.Abs(pos.Norm()-dist) > 1 {
		t.Errorf("distance %.0f m disagrees with vector magnitude %.0f m", dist, pos.Norm())
	}

	res := evaluateSingle(evalJob{obj: obj, frame: fc})
	if !res.ok {
		t.Fatal("evaluateSingle not ok")
	}
	wantLabel := fmt.Sprintf("(%.0f km)", dist/1000)
	if !strings.Contains(res.position.Label, wantLabel) {
		t.Errorf("label %q does not carry floored distance %q", res.position.Label, wantLabel)
	}
	if res.position.DistanceM != dist {
		t.Errorf("record distance %.0f, want %.0f", res.position.DistanceM, dist)
	}
}

// A body on Earth's own mean orbit stays near Earth, so its geocentric
// distance must come out far smaller than for an outer-belt object.
func TestGeocentricDistanceOrdering(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	jd := astro.JulianDay(now)

	earthLike := ephemeris.NewOrbitalElements(
		ephemeris.AstronomicalUnitM, 0.0167, 0, 0,
		102.93*math.Pi/180, 0, 0, jd)
	// Seed the mean anomaly so the body sits near Earth's current
	// ecliptic longitude.
	earth, _ := ephemeris.EarthPosition(jd)
	earthLon := math.Atan2(earth.Y, earth.X)
	earthLike.MeanAnomalyRad = astro.NormalizeTwoPi(earthLon - earthLike.ArgPeriapsisRad)

	belt := ephemeris.NewOrbitalElements(
		2.7*ephemeris.AstronomicalUnitM, 0.1, 0, 0, 0, 0, 0, jd)

	objects := []*catalog.TrackedObject{
		{ID: "near", DisplayName: "Near", Elements: &earthLike},
		{ID: "far", DisplayName: "Far", Elements: &belt},
	}
	s := NewSession(testLogger())
	s.LoadCatalog(catalog.NewDataset("test", now, objects))

	fc := newFrameContext(now)
	_, nearDist, ok := positionAt(fc, objects[0], FallbackPlacement{}, 0)
	if !ok {
		t.Fatal("near object position not ok")
	}
	_, farDist, ok := positionAt(fc, objects[1], FallbackPlacement{}, 0)
	if !ok {
		t.Fatal("far object position not ok")
	}

	if nearDist >= farDist {
		t.Errorf("near distance %.3e not below far distance %.3e", nearDist, farDist)
	}
	if nearDist > 0.5*ephemeris.AstronomicalUnitM {
		t.Errorf("earth-like object %.3e m away, expected well under half an AU", nearDist)
	}
}

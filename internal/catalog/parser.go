package catalog

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/neowatch/neowatch/internal/astro"
	"github.com/neowatch/neowatch/internal/ephemeris"
)

// ParseElements validates and converts raw NeoWs orbital data into an
// internal element set: AU to meters, degrees to radians, optional mean
// motion derived from the semi-major axis when absent.
//
// Returns nil, never an error, when any required field is missing or not a
// finite number, or the semi-major axis is not positive. The object then
// falls back to pseudo-motion; a single bad catalog entry must never halt
// the visualization.
func ParseElements(raw *RawOrbitalData) *ephemeris.OrbitalElements {
	if raw == nil {
		return nil
	}

	aAU, ok := parseField(raw.SemiMajorAxisAU)
	if !ok || aAU <= 0 {
		return nil
	}
	ecc, ok := parseField(raw.Eccentricity)
	if !ok {
		return nil
	}
	incDeg, ok := parseField(raw.InclinationDeg)
	if !ok {
		return nil
	}
	nodeDeg, ok := parseField(raw.AscendingNodeDeg)
	if !ok {
		return nil
	}
	argDeg, ok := parseField(raw.PerihelionArgDeg)
	if !ok {
		return nil
	}
	meanAnomDeg, ok := parseField(raw.MeanAnomalyDeg)
	if !ok {
		return nil
	}
	epochJD, ok := parseField(raw.EpochOsculationJD)
	if !ok {
		return nil
	}

	// Mean motion is optional; the catalog value wins when usable.
	var meanMotionRadDay float64
	if mm, ok := parseField(raw.MeanMotionDegDay); ok && mm > 0 {
		meanMotionRadDay = mm * math.Pi / 180.0
	}

	el := ephemeris.NewOrbitalElements(
		aAU*ephemeris.AstronomicalUnitM,
		ecc,
		incDeg*math.Pi/180.0,
		nodeDeg*math.Pi/180.0,
		argDeg*math.Pi/180.0,
		meanAnomDeg*math.Pi/180.0,
		meanMotionRadDay,
		epochJD,
	)
	return &el
}

// parseField parses a decimal string field, rejecting empty, malformed and
// non-finite values.
func parseField(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !astro.IsFinite(v) {
		return 0, false
	}
	return v, true
}

// BuildObject converts a raw feed entry into a TrackedObject. Entries with
// unusable orbital data are kept with nil Elements.
func BuildObject(raw RawEntry) *TrackedObject {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = raw.ID
	}

	return &TrackedObject{
		ID:                 raw.ID,
		DisplayName:        name,
		Elements:           ParseElements(raw.OrbitalData),
		Hazardous:          raw.IsPotentiallyHazardous,
		AbsoluteMagnitudeH: raw.AbsoluteMagnitudeH,
		DiameterMinM:       raw.EstimatedDiameter.Meters.Min,
		DiameterMaxM:       raw.EstimatedDiameter.Meters.Max,
		CloseApproaches:    parseCloseApproaches(raw.CloseApproachData),
	}
}

// parseCloseApproaches converts raw close-approach records, silently
// skipping malformed ones.
func parseCloseApproaches(raws []RawCloseApproach) []CloseApproach {
	if len(raws) == 0 {
		return nil
	}

	out := make([]CloseApproach, 0, len(raws))
	for _, r := range raws {
		if r.EpochDateCloseApproach == 0 {
			continue
		}
		miss, ok := parseField(r.MissDistance.Kilometers)
		if !ok {
			continue
		}
		vel, _ := parseField(r.RelativeVelocity.KilometersPerSecond)

		out = append(out, CloseApproach{
			Time:                time.UnixMilli(r.EpochDateCloseApproach).UTC(),
			OrbitingBody:        r.OrbitingBody,
			MissDistanceKm:      miss,
			RelativeVelocityKmS: vel,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// BuildDataset parses every raw entry into a new immutable snapshot.
// Unparsable orbital data degrades to fallback tracking, never to a dropped
// object.
func BuildDataset(source string, fetchedAt time.Time, raws []RawEntry, logger *slog.Logger) *Dataset {
	objects := make([]*TrackedObject, 0, len(raws))
	for _, raw := range raws {
		obj := BuildObject(raw)
		if obj.Elements == nil {
			logger.Debug("catalog entry has no usable orbital data, using fallback placement",
				"id", obj.ID, "name", obj.DisplayName)
		}
		objects = append(objects, obj)
	}

	ds := NewDataset(source, fetchedAt, objects)
	logger.Info("catalog dataset built",
		"source", source,
		"objects", len(objects),
		"fallback", ds.FallbackCount(),
	)
	return ds
}

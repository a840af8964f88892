package propagation

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/neowatch/neowatch/internal/transform"
)

// FallbackPlacement is a deterministic synthetic orbit for an object whose
// catalog entry lacked usable orbital elements. The parameters are derived
// from the object's identity so the same catalog always renders the same way.
type FallbackPlacement struct {
	BaseLonDeg            float64
	BaseLatDeg            float64
	AltitudeM             float64
	AngularSpeedDegPerSec float64
	InclinationDeg        float64
}

// DerivePlacement computes a placement from the object's id, display name and
// catalog index. The three inputs are hashed together so renaming or
// reordering the catalog moves only the affected object.
func DerivePlacement(id, name string, index int) FallbackPlacement {
	h := fnv.New64a()
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0, byte(index), byte(index >> 8)})
	seed := h.Sum64()

	next := func(n uint64) float64 {
		v := seed % n
		seed /= n
		return float64(v)
	}

	return FallbackPlacement{
		BaseLonDeg:            next(720)/2 - 180,
		BaseLatDeg:            next(281)/2 - 70,
		AltitudeM:             400e3 + next(1600)*1e3,
		AngularSpeedDegPerSec: 0.2 + next(181)/100,
		InclinationDeg:        next(61),
	}
}

// PositionAt returns the placement's ECEF position after elapsed time. The
// ground track drifts east at the placement's angular speed with two slow
// latitude oscillations superimposed.
func (p FallbackPlacement) PositionAt(elapsed time.Duration) transform.Vec3 {
	secs := elapsed.Seconds()

	lon := wrapLon(p.BaseLonDeg + p.AngularSpeedDegPerSec*secs)
	lat := p.BaseLatDeg +
		4*math.Sin(2*math.Pi*secs/97) +
		0.25*p.InclinationDeg*math.Sin(2*math.Pi*secs/1900)
	lat = clampLat(lat)

	return transform.GeodeticToECEF(lat, lon, p.AltitudeM)
}

// wrapLon wraps a longitude into [-180, 180).
func wrapLon(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

// clampLat keeps fallback tracks away from the poles, where the renderer's
// billboard math degenerates.
func clampLat(deg float64) float64 {
	if deg > 85 {
		return 85
	}
	if deg < -85 {
		return -85
	}
	return deg
}

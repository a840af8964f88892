// Package astro holds the small pieces of spherical astronomy shared by the
// ephemeris and transform packages: angle reduction, Kepler's equation, and
// Julian day conversions.
package astro

import "math"

// TwoPi is a full turn in radians.
const TwoPi = 2 * math.Pi

// NormalizeTwoPi reduces an angle in radians to [0, 2π).
// Idempotent: NormalizeTwoPi(NormalizeTwoPi(x)) == NormalizeTwoPi(x) for all
// finite x.
func NormalizeTwoPi(rad float64) float64 {
	r := math.Mod(rad, TwoPi)
	if r < 0 {
		r += TwoPi
	}
	if r >= TwoPi {
		// r+2π can round up to exactly 2π for tiny negative inputs.
		r = 0
	}
	return r
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Package ephemeris computes heliocentric positions from Keplerian orbital
// elements using an unperturbed two-body model. The model trades accuracy
// for evaluation cost: it is cheap enough to run every rendered frame for
// dozens of objects, and nowhere near ephemeris grade.
package ephemeris

import (
	"math"

	"github.com/neowatch/neowatch/internal/astro"
)

const (
	// AstronomicalUnitM is one astronomical unit in meters (IAU 2012).
	AstronomicalUnitM = 1.495978707e11

	// GMSun is the Sun's standard gravitational parameter in m³/s².
	GMSun = 1.32712440018e20

	// MaxEccentricity caps catalog eccentricities. The closed-orbit solver
	// degenerates as e approaches 1, so near-parabolic and hyperbolic
	// entries are pulled back to a bound ellipse rather than rejected.
	MaxEccentricity = 0.99

	secondsPerDay = 86400.0
)

// OrbitalElements is an immutable osculating element set referenced to an
// epoch. All angles are in radians, normalized to [0, 2π); the semi-major
// axis is in meters and the mean motion in radians per day.
type OrbitalElements struct {
	SemiMajorAxisM      float64
	Eccentricity        float64
	InclinationRad      float64
	AscendingNodeRad    float64
	ArgPeriapsisRad     float64
	MeanAnomalyRad      float64
	MeanMotionRadPerDay float64
	EpochJD             float64
}

// NewOrbitalElements builds an element set with the storage invariants
// applied: angles reduced to [0, 2π), eccentricity clamped to
// [0, MaxEccentricity], and mean motion derived from the semi-major axis
// when the supplied value is not positive.
func NewOrbitalElements(aMeters, ecc, incRad, nodeRad, argPeriRad, meanAnomRad, meanMotionRadPerDay, epochJD float64) OrbitalElements {
	if meanMotionRadPerDay <= 0 {
		meanMotionRadPerDay = DeriveMeanMotion(aMeters)
	}
	return OrbitalElements{
		SemiMajorAxisM:      aMeters,
		Eccentricity:        astro.Clamp(ecc, 0, MaxEccentricity),
		InclinationRad:      astro.NormalizeTwoPi(incRad),
		AscendingNodeRad:    astro.NormalizeTwoPi(nodeRad),
		ArgPeriapsisRad:     astro.NormalizeTwoPi(argPeriRad),
		MeanAnomalyRad:      astro.NormalizeTwoPi(meanAnomRad),
		MeanMotionRadPerDay: meanMotionRadPerDay,
		EpochJD:             epochJD,
	}
}

// DeriveMeanMotion returns the two-body mean motion in rad/day for a
// heliocentric orbit with the given semi-major axis in meters.
func DeriveMeanMotion(aMeters float64) float64 {
	return math.Sqrt(GMSun/(aMeters*aMeters*aMeters)) * secondsPerDay
}

package ephemeris

import (
	"math"

	"github.com/neowatch/neowatch/internal/astro"
	"github.com/neowatch/neowatch/internal/transform"
)

// Position returns the heliocentric ecliptic-frame position in meters of the
// body described by el at the given Julian day.
//
// ok is false only when the Kepler solve was handed non-finite input; any
// finite element set yields a best-effort position. Pure function of its
// arguments, safe to call concurrently.
func Position(el OrbitalElements, jd float64) (transform.Vec3, bool) {
	deltaDays := jd - el.EpochJD
	meanAnomaly := astro.NormalizeTwoPi(el.MeanAnomalyRad + el.MeanMotionRadPerDay*deltaDays)

	eccAnomaly, ok := astro.SolveKepler(meanAnomaly, el.Eccentricity)
	if !ok {
		return transform.Vec3{}, false
	}

	return eclipticFromEccentricAnomaly(el, eccAnomaly), true
}

// eclipticFromEccentricAnomaly projects the in-plane position for the solved
// eccentric anomaly into the ecliptic frame via the classical rotation by
// argument of periapsis, inclination, and ascending-node longitude.
func eclipticFromEccentricAnomaly(el OrbitalElements, eccAnomaly float64) transform.Vec3 {
	e := el.Eccentricity
	sinE := math.Sin(eccAnomaly)
	cosE := math.Cos(eccAnomaly)

	trueAnomaly := math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)
	r := el.SemiMajorAxisM * (1 - e*cosE)

	xOrb := r * math.Cos(trueAnomaly)
	yOrb := r * math.Sin(trueAnomaly)

	sinW := math.Sin(el.ArgPeriapsisRad)
	cosW := math.Cos(el.ArgPeriapsisRad)
	sinO := math.Sin(el.AscendingNodeRad)
	cosO := math.Cos(el.AscendingNodeRad)
	sinI := math.Sin(el.InclinationRad)
	cosI := math.Cos(el.InclinationRad)

	return transform.Vec3{
		X: xOrb*(cosW*cosO-sinW*sinO*cosI) - yOrb*(sinW*cosO+cosW*sinO*cosI),
		Y: xOrb*(cosW*sinO+sinW*cosO*cosI) - yOrb*(sinW*sinO-cosW*cosO*cosI),
		Z: xOrb*(sinW*sinI) + yOrb*(cosW*sinI),
	}
}

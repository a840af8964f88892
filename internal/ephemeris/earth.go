package ephemeris

import (
	"math"

	"github.com/neowatch/neowatch/internal/astro"
	"github.com/neowatch/neowatch/internal/transform"
)

// Low-precision mean orbital elements for Earth, from Standish,
// "Approximate Positions of the Planets" (J2000 ecliptic). Mean longitude
// and longitude of perihelion are linear in T; the eccentricity carries a
// slow linear decay. Good to arcminutes over a few centuries, which is far
// beyond what the two-body object model needs.
const (
	earthSemiMajorAU    = 1.00000261
	earthEccentricity0  = 0.01671123
	earthEccentricityD  = -0.00004392 // per Julian century
	earthMeanLongitude0 = 100.46457166
	earthMeanLongitudeD = 35999.37244981 // degrees per Julian century
	earthPerihelionLon0 = 102.93768193
	earthPerihelionLonD = 0.32327364 // degrees per Julian century
)

// EarthPosition returns Earth's heliocentric ecliptic position in meters at
// the given Julian day. ok is false only for a non-finite jd.
//
// Earth's orbit is treated as lying exactly in the ecliptic plane (z = 0);
// the reduced form skips the inclination/node rotation but otherwise runs
// the same Kepler-solve pipeline as Position.
func EarthPosition(jd float64) (transform.Vec3, bool) {
	T := astro.JulianCenturies(jd)

	meanLon := astro.NormalizeTwoPi(degToRad(earthMeanLongitude0 + earthMeanLongitudeD*T))
	periLon := astro.NormalizeTwoPi(degToRad(earthPerihelionLon0 + earthPerihelionLonD*T))
	e := earthEccentricity0 + earthEccentricityD*T
	a := earthSemiMajorAU * AstronomicalUnitM

	meanAnomaly := astro.NormalizeTwoPi(meanLon - periLon)
	eccAnomaly, ok := astro.SolveKepler(meanAnomaly, e)
	if !ok {
		return transform.Vec3{}, false
	}

	sinE := math.Sin(eccAnomaly)
	cosE := math.Cos(eccAnomaly)
	trueAnomaly := math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)
	r := a * (1 - e*cosE)

	eclipticLon := trueAnomaly + periLon
	return transform.Vec3{
		X: r * math.Cos(eclipticLon),
		Y: r * math.Sin(eclipticLon),
	}, true
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

package transform

import (
	"math"
	"time"

	"github.com/neowatch/neowatch/internal/astro"
)

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UTC
// time, using the IAU-1982 model.
func GMST(t time.Time) float64 {
	return GMSTFromJD(astro.JulianDay(t.UTC()))
}

// GMSTFromJD calculates GMST in radians from a Julian day number.
//
// Formula (degrees, d = days from J2000.0, T = Julian centuries):
//
//	θ = 280.46061837 + 360.98564736629·d + 0.000387933·T² - T³/38710000
//
// reduced modulo 360° and converted to radians. At JD 2451545.0 this yields
// approximately 280.46°.
func GMSTFromJD(jd float64) float64 {
	d := jd - astro.J2000
	T := astro.JulianCenturies(jd)

	deg := 280.46061837 +
		360.98564736629*d +
		0.000387933*T*T -
		T*T*T/38710000.0

	deg = math.Mod(deg, 360.0)
	if deg < 0 {
		deg += 360.0
	}

	return deg * math.Pi / 180.0
}

package astro

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// J2000 is the Julian day of the J2000.0 epoch (2000-01-01T12:00:00 TT).
const J2000 = 2451545.0

// JulianDay converts t to a Julian day number.
func JulianDay(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// JulianDayToTime converts a Julian day number back to a time.Time in UTC.
func JulianDayToTime(jd float64) time.Time {
	return julian.JDToTime(jd).UTC()
}

// JulianCenturies returns Julian centuries elapsed between J2000.0 and jd.
func JulianCenturies(jd float64) float64 {
	return (jd - J2000) / 36525.0
}

package astro

import (
	"math"
	"testing"
	"time"
)

func TestJulianDay(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{
			name:     "J2000.0 epoch",
			time:     time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			expected: 2451545.0,
		},
		{
			name:     "Unix epoch",
			time:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 2440587.5,
		},
		{
			// Vallado Example 3-15: April 6, 2004, 07:51:28.386 UTC.
			name:     "Vallado example date",
			time:     time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC),
			expected: 2453101.827411875,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDay(tt.time)
			if diff := math.Abs(got - tt.expected); diff > 1e-6 {
				t.Errorf("JulianDay(%v) = %.10f, want %.10f (diff=%.2e)", tt.time, got, tt.expected, diff)
			}
		})
	}
}

func TestJulianDayRoundTrip(t *testing.T) {
	orig := time.Date(2026, 8, 30, 6, 30, 0, 0, time.UTC)
	back := JulianDayToTime(JulianDay(orig))
	if d := back.Sub(orig); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("round trip drifted by %v: %v -> %v", d, orig, back)
	}
}

func TestJulianCenturies(t *testing.T) {
	if got := JulianCenturies(J2000); got != 0 {
		t.Errorf("JulianCenturies(J2000) = %g, want 0", got)
	}
	if got := JulianCenturies(J2000 + 36525); math.Abs(got-1) > 1e-12 {
		t.Errorf("JulianCenturies(J2000+36525) = %g, want 1", got)
	}
}

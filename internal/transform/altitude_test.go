package transform

import (
	"math"
	"testing"
)

func TestEnsureSafeAltitudeBelowFloor(t *testing.T) {
	tests := []struct {
		name string
		v    Vec3
	}{
		{"inside Earth", Vec3{X: 1000e3, Y: 2000e3, Z: -500e3}},
		{"at surface", Vec3{X: EarthRadiusM}},
		{"just under floor", Vec3{X: 0, Y: SafeAltitudeFloorM - 1, Z: 0}},
		{"tiny vector", Vec3{X: 1, Y: 1, Z: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnsureSafeAltitude(tt.v)

			if diff := math.Abs(got.Norm() - SafeAltitudeFloorM); diff > 1e-3 {
				t.Errorf("magnitude = %.6f, want %.6f (diff %.2e)", got.Norm(), SafeAltitudeFloorM, diff)
			}

			// Direction must be preserved: cross product of v and got is ~0
			// and the dot product positive.
			dot := tt.v.X*got.X + tt.v.Y*got.Y + tt.v.Z*got.Z
			if dot <= 0 {
				t.Errorf("direction flipped: %+v -> %+v", tt.v, got)
			}
			cx := tt.v.Y*got.Z - tt.v.Z*got.Y
			cy := tt.v.Z*got.X - tt.v.X*got.Z
			cz := tt.v.X*got.Y - tt.v.Y*got.X
			if cross := math.Sqrt(cx*cx + cy*cy + cz*cz); cross > tt.v.Norm()*got.Norm()*1e-12 {
				t.Errorf("direction changed: cross magnitude %g", cross)
			}
		})
	}
}

func TestEnsureSafeAltitudeAboveFloor(t *testing.T) {
	tests := []Vec3{
		{X: SafeAltitudeFloorM},
		{X: 42164e3, Y: 100e3},
		{X: 1.5e11, Y: -2e10, Z: 3e9}, // AU scale
	}

	for _, v := range tests {
		if got := EnsureSafeAltitude(v); got != v {
			t.Errorf("vector above floor changed: %+v -> %+v", v, got)
		}
	}
}

func TestEnsureSafeAltitudeZeroVector(t *testing.T) {
	if got := EnsureSafeAltitude(Vec3{}); got != (Vec3{}) {
		t.Errorf("zero vector changed: %+v", got)
	}
}
